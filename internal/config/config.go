package config

import (
	"fmt"
	"time"
)

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

type Config struct {
	// StorePath is the room directory location: a JSON file for the
	// file backend, a database file for the sqlite backend.
	StorePath    string
	StoreBackend string
	PollInterval time.Duration
	// DebugAddr, when set, serves expvar stats on /debug/vars.
	DebugAddr   string
	STUNServers []string
}

func NewConfig(storePath, backend string, pollInterval time.Duration, debugAddr string, stunServers []string) (*Config, error) {
	if storePath == "" {
		return nil, fmt.Errorf("store path cannot be empty")
	}
	if backend != BackendFile && backend != BackendSQLite {
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if pollInterval <= 0 {
		pollInterval = time.Second
	}

	return &Config{
		StorePath:    storePath,
		StoreBackend: backend,
		PollInterval: pollInterval,
		DebugAddr:    debugAddr,
		STUNServers:  stunServers,
	}, nil
}
