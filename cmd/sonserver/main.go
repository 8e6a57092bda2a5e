// Command sonserver runs the SON live-programming environment's reference
// HTTP server: it loads project configuration, opens the persistent
// store, bootstraps or restores an image, and serves §6's HTTP surface.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonlang/son/config"
	"github.com/sonlang/son/image"
	"github.com/sonlang/son/logging"
	"github.com/sonlang/son/server"
)

func main() {
	projectDir := flag.String("project", ".", "directory containing son.toml (optional)")
	flag.Parse()

	rt := config.RuntimeFromEnv()
	log := logging.New(rt.Debug)

	if manifest, err := config.FindAndLoad(*projectDir); err != nil {
		log.Warn("son.toml lookup failed", "tag", "config", "error", err)
	} else if manifest != nil {
		log.Info("project manifest loaded", "tag", "config", "project", manifest.Project.Name)
	}

	store, err := image.Open(rt.StorePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "opening store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	srv, err := server.New(store, log, rt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "building server: %v\n", err)
		os.Exit(1)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			fmt.Fprintf(os.Stderr, "server error: %v\n", err)
			os.Exit(1)
		}
	case <-sigCh:
		log.Info("shutting down", "tag", "server")
		ctx, cancel := context.WithTimeout(context.Background(), rt.FetchTimeout)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "shutdown error: %v\n", err)
			os.Exit(1)
		}
	}
}
