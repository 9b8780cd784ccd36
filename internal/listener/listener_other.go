//go:build !unix

package listener

import (
	"context"
	"net"
	"strconv"
)

// listenOn falls back to the standard listener; the backlog is left to the OS.
func listenOn(ip net.IP, port, backlog int) (net.Listener, error) {
	var lc net.ListenConfig
	return lc.Listen(context.Background(), "tcp", net.JoinHostPort(ip.String(), strconv.Itoa(port)))
}
