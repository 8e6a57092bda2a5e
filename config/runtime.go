package config

import (
	"os"
	"strconv"
	"time"
)

// Runtime holds environment-variable-driven settings for the running
// server process (§4.10): listen address, SQLite store path,
// debug-logging flag, bridge fetch timeout. Read once at process startup
// and never re-read — a changed environment variable requires a restart,
// consistent with the image loader's "not required to be live-updated"
// rule (§4.8).
type Runtime struct {
	ListenAddr   string
	StorePath    string
	Debug        bool
	FetchTimeout time.Duration
}

// RuntimeFromEnv reads SON_LISTEN_ADDR, SON_STORE_PATH, SON_DEBUG, and
// SON_FETCH_TIMEOUT_MS, falling back to defaults matching the teacher's own
// "os.Getenv with a default" idiom (lib/runtime/runtime.go's DefaultConfig).
func RuntimeFromEnv() *Runtime {
	r := &Runtime{
		ListenAddr:   "localhost:8080",
		StorePath:    "son.db",
		Debug:        false,
		FetchTimeout: 10 * time.Second,
	}

	if v := os.Getenv("SON_LISTEN_ADDR"); v != "" {
		r.ListenAddr = v
	}
	if v := os.Getenv("SON_STORE_PATH"); v != "" {
		r.StorePath = v
	}
	if v := os.Getenv("SON_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			r.Debug = b
		}
	}
	if v := os.Getenv("SON_FETCH_TIMEOUT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms >= 0 {
			r.FetchTimeout = time.Duration(ms) * time.Millisecond
		}
	}

	return r
}
