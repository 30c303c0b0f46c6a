package services

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func frame(stream byte, payload string) []byte {
	header := make([]byte, 8)
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))
	return append(header, payload...)
}

func TestDemuxDockerLogs(t *testing.T) {
	tests := []struct {
		name    string
		frames  [][]byte
		wantOut string
		wantErr string
	}{
		{
			name:    "stdout and stderr",
			frames:  [][]byte{frame(1, "hello\n"), frame(2, "oops\n"), frame(1, "bye\n")},
			wantOut: "hello\nbye\n",
			wantErr: "oops\n",
		},
		{
			name:    "zero size frame",
			frames:  [][]byte{frame(1, ""), frame(2, "err\n"), frame(1, "")},
			wantErr: "err\n",
		},
		{
			name: "empty stream",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			src := bytes.NewReader(bytes.Join(tt.frames, nil))
			if err := DemuxDockerLogs(&stdout, &stderr, src); err != nil {
				t.Fatalf("DemuxDockerLogs: %v", err)
			}
			if stdout.String() != tt.wantOut || stderr.String() != tt.wantErr {
				t.Fatalf("stdout = %q stderr = %q", stdout.String(), stderr.String())
			}
		})
	}
}

func TestDemuxDockerLogsTruncatedPayload(t *testing.T) {
	raw := frame(1, "complete")
	var stdout, stderr bytes.Buffer
	if err := DemuxDockerLogs(&stdout, &stderr, bytes.NewReader(raw[:len(raw)-2])); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestDockerNamesStartWithAlphanumeric(t *testing.T) {
	tests := []struct {
		project string
		service string
		want    string
	}{
		{"ethnode", "signer", "ethnode-signer"},
		{"-x", "signer", "x-signer"},
		{"__.My Node", "execution", "my_node-execution"},
		{"Node", "consensus", "node-consensus"},
	}

	for _, tt := range tests {
		if got := DockerServiceName(tt.project, tt.service); got != tt.want {
			t.Errorf("DockerServiceName(%q, %q) = %q, want %q", tt.project, tt.service, got, tt.want)
		}
	}
	if got := DockerNetworkName("-x"); got != "x-net" {
		t.Errorf("DockerNetworkName = %q", got)
	}
}
