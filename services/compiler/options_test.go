package compiler

import (
	"errors"
	"reflect"
	"testing"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

func TestEncodeTriState(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  []string
	}{
		{"false", false, nil},
		{"nil", nil, nil},
		{"zero", 0, nil},
		{"zero float", 0.0, nil},
		{"empty string", "", nil},
		{"empty slice", []string{}, nil},
		{"true", true, []string{"--flag"}},
		{"one", 1, []string{"--flag"}},
		{"one uint", uint16(1), []string{"--flag"}},
		{"string", "x", []string{"--flag", "x"}},
		{"string one", "1", []string{"--flag", "1"}},
		{"number", 8545, []string{"--flag", "8545"}},
		{"slice", []string{"eth", "net", "web3"}, []string{"--flag", "eth,net,web3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(Option{Flag: "--flag", Value: tt.value})
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("Encode(%v) = %q, want %q", tt.value, got, tt.want)
			}
		})
	}
}

func TestPortLabels(t *testing.T) {
	tests := []struct {
		flag  string
		value any
		label string
		port  int
	}{
		{"--http.port", "8545", "http", 8545},
		{"--http-port", "5052", "http", 5052},
		{"--authrpc.port", 8551, "authrpc", 8551},
		{"--ws.port", " 8546 ", "ws", 8546},
	}

	for _, tt := range tests {
		got, err := Port(Option{Flag: tt.flag, Value: tt.value})
		if err != nil {
			t.Fatalf("Port(%s): %v", tt.flag, err)
		}
		if got.Protocol != tt.label || got.Port != tt.port {
			t.Fatalf("Port(%s) = %+v, want %s/%d", tt.flag, got, tt.label, tt.port)
		}
	}
}

func TestPortRejectsNonNumericValues(t *testing.T) {
	for _, value := range []any{"http", "80a", "-1", "70000", 3.5} {
		_, err := Port(Option{Flag: "--http.port", Value: value})
		var portErr *models.InvalidPortError
		if !errors.As(err, &portErr) {
			t.Fatalf("Port(%v) error = %v, want InvalidPortError", value, err)
		}
		if portErr.Flag != "--http.port" {
			t.Fatalf("error flag = %q", portErr.Flag)
		}
	}
}

func TestCompileOrdersPortsBeforeCommand(t *testing.T) {
	m, err := Compile(
		[]Option{
			{"--http.port", "8545"},
			{"--ws.port", nil},
			{"--authrpc.port", "8551"},
		},
		[]Option{
			{"--http", true},
			{"--ws", false},
			{"--http.api", []string{"eth", "net"}},
			{"--signer", ""},
		},
	)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	wantArgs := []string{"--http.port", "8545", "--authrpc.port", "8551", "--http", "--http.api", "eth,net"}
	if !reflect.DeepEqual(m.Args, wantArgs) {
		t.Fatalf("args = %q, want %q", m.Args, wantArgs)
	}
	if len(m.Ports) != 2 || m.Ports[0].Protocol != "http" || m.Ports[1].Protocol != "authrpc" {
		t.Fatalf("ports = %+v", m.Ports)
	}
}

func TestCompileFailsOnInvalidPort(t *testing.T) {
	_, err := Compile([]Option{{"--http.port", "eighty"}}, nil)
	var portErr *models.InvalidPortError
	if !errors.As(err, &portErr) {
		t.Fatalf("expected InvalidPortError, got %v", err)
	}
}

func TestCompileIsDeterministic(t *testing.T) {
	ports := []Option{{"--http.port", "8545"}}
	cmd := []Option{{"--http", true}, {"--http.addr", "0.0.0.0"}}

	first, err := Compile(ports, cmd)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := Compile(ports, cmd)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(first, again) {
			t.Fatalf("run %d differs: %+v vs %+v", i, first, again)
		}
	}
}
