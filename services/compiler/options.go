// Package compiler turns structured service options into launch specs. Every
// function in this package is pure: identical input yields identical output,
// including ordering.
package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

// Option is one (flag, value) pair of a client command line.
type Option struct {
	Flag  string
	Value any
}

// Mapping is the compiled form of a set of options.
type Mapping struct {
	Ports []models.PortBinding
	Args  []string
}

// Compile encodes port options first and command options second, in input
// order. Port options that encode to nothing are disabled endpoints and
// produce neither a binding nor arguments.
func Compile(ports, cmd []Option) (Mapping, error) {
	m := Mapping{
		Ports: []models.PortBinding{},
		Args:  []string{},
	}

	for _, opt := range ports {
		if len(Encode(opt)) == 0 {
			continue
		}
		binding, err := Port(opt)
		if err != nil {
			return Mapping{}, err
		}
		m.Ports = append(m.Ports, binding)
		m.Args = append(m.Args, opt.Flag, strconv.Itoa(binding.Port))
	}

	for _, opt := range cmd {
		m.Args = append(m.Args, Encode(opt)...)
	}

	return m, nil
}

// Encode applies the tri-state rule to a single option:
//
//	nil, "", false, 0 -> nothing
//	true, 1           -> flag
//	anything else     -> flag, value
//
// String slices are joined with commas; an empty slice encodes to nothing.
func Encode(opt Option) []string {
	switch v := opt.Value.(type) {
	case nil:
		return nil
	case bool:
		if !v {
			return nil
		}
		return []string{opt.Flag}
	case string:
		if v == "" {
			return nil
		}
		return []string{opt.Flag, v}
	case []string:
		if len(v) == 0 {
			return nil
		}
		return []string{opt.Flag, strings.Join(v, ",")}
	case fmt.Stringer:
		return Encode(Option{Flag: opt.Flag, Value: v.String()})
	}

	if n, ok := numeric(opt.Value); ok {
		switch n {
		case 0:
			return nil
		case 1:
			return []string{opt.Flag}
		}
	}

	return []string{opt.Flag, fmt.Sprint(opt.Value)}
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// Port parses a port option into a binding labelled with the flag namespace.
func Port(opt Option) (models.PortBinding, error) {
	raw := strings.TrimSpace(fmt.Sprint(opt.Value))
	port, err := strconv.Atoi(raw)
	if err != nil || port < 1 || port > 65535 {
		return models.PortBinding{}, &models.InvalidPortError{Flag: opt.Flag, Value: raw}
	}

	return models.PortBinding{
		Protocol:  ProtocolLabel(opt.Flag),
		Port:      port,
		Transport: "tcp",
	}, nil
}

// ProtocolLabel strips the leading dashes and the port suffix of a flag:
// "--http.port" and "--http-port" both yield "http".
func ProtocolLabel(flag string) string {
	label := strings.TrimPrefix(flag, "--")
	if strings.Contains(label, ".") {
		return strings.TrimSuffix(label, ".port")
	}
	return strings.TrimSuffix(label, "-port")
}
