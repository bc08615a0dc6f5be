package sshserver

import "time"

// Config defines SSH server settings.
type Config struct {
	Addr        string
	KeyDir      string
	IdleTimeout time.Duration
}
