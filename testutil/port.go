package testutil

import "net"

// FreeAddr returns a loopback address with a port that was free when checked
func FreeAddr() (string, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", err
	}
	defer func() {
		_ = l.Close()
	}()
	return l.Addr().String(), nil
}
