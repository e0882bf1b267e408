package main

import (
	"net"
	"os"

	"github.com/keithlinneman/docsite/internal/xerrors"
)

// notifySystemd sends READY=1 when started as a Type=notify unit and
// does nothing otherwise.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return nil
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "dial systemd notify socket")
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return xerrors.Wrap(err, "write systemd notify socket")
	}
	return nil
}
