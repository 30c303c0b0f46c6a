package models

import "fmt"

// PortBinding publishes one container port. Protocol is the namespace label
// derived from the option flag ("http" for --http.port); Transport is the
// IP protocol.
type PortBinding struct {
	Protocol  string `json:"protocol"`
	Port      int    `json:"port"`
	Transport string `json:"transport,omitempty"` // tcp (default) | udp
	HostIP    string `json:"host_ip,omitempty"`
	HostPort  int    `json:"host_port,omitempty"`
}

func (b PortBinding) TransportOrDefault() string {
	if b.Transport == "" {
		return "tcp"
	}
	return b.Transport
}

func (b PortBinding) Published() int {
	if b.HostPort == 0 {
		return b.Port
	}
	return b.HostPort
}

// String renders the binding the way `docker run -p` expects it.
func (b PortBinding) String() string {
	hostIP := b.HostIP
	if hostIP == "" {
		hostIP = "127.0.0.1"
	}
	return fmt.Sprintf("%s:%d:%d/%s", hostIP, b.Published(), b.Port, b.TransportOrDefault())
}
