// Package server implements the HTTP surface of §6/§4.11: a reference
// server exposing the image-loader/evaluator/persistence contract over
// plain HTTP with JSON bodies. It owns no SON semantics itself — every
// request is delegated to package image or package eval and the result
// translated to the documented response shape and status code.
//
// Route shape (http.NewServeMux, one handler per path, a Stop lifecycle)
// is grounded on the reference teacher's server.New/ListenAndServe/Stop
// shape; the Connect/gRPC/protobuf plumbing that shape originally carried
// is dropped since this repository's generated stubs are not available
// (see the project's dependency ledger).
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/sonlang/son/bridge"
	"github.com/sonlang/son/config"
	"github.com/sonlang/son/eval"
	"github.com/sonlang/son/image"
	"github.com/sonlang/son/value"
)

// Server wraps one loaded SON environment and its persistence store behind
// an HTTP mux. Exactly one evaluation runs at a time against Root, guarded
// by Mu, per §5's single-threaded-cooperative-per-environment rule.
type Server struct {
	Store *image.Store
	Root  *value.Environment
	Eval  *eval.Evaluator
	Mu    *sync.Mutex
	Log   *slog.Logger

	mux        *http.ServeMux
	httpServer *http.Server
}

// New builds a Server: bootstraps the base classes and Bridge, loads the
// store's persisted base_environment and methods on top, and wires every
// route in §6 plus the POST /evaluate and GET /ws additions from §4.11.
func New(store *image.Store, log *slog.Logger, rt *config.Runtime) (*Server, error) {
	mu := &sync.Mutex{}
	ev := eval.New(log)
	root := image.Bootstrap(ev, log, mu, bridge.Config{FetchTimeout: rt.FetchTimeout})

	blob, err := store.BaseEnvironment()
	if err != nil {
		return nil, err
	}
	if err := image.LoadBaseEnvironment(root, blob, log); err != nil {
		return nil, err
	}
	if err := loadStoredMethods(store, root, log); err != nil {
		return nil, err
	}

	s := &Server{
		Store: store,
		Root:  root,
		Eval:  ev,
		Mu:    mu,
		Log:   log,
		mux:   http.NewServeMux(),
	}
	s.routes()
	s.httpServer = &http.Server{Addr: rt.ListenAddr, Handler: withCORS(s.mux)}
	return s, nil
}

// loadStoredMethods installs every persisted (class, selector) method onto
// root's class tables, creating a class table if the store knows a class
// the bootstrap and base-environment load didn't already bind.
func loadStoredMethods(store *image.Store, root *value.Environment, log *slog.Logger) error {
	classNames, err := store.Classes()
	if err != nil {
		return err
	}
	count := 0
	for _, className := range classNames {
		class, err := resolveOrCreateClass(root, className)
		if err != nil {
			return err
		}
		selectors, err := store.Methods(className)
		if err != nil {
			return err
		}
		for _, selector := range selectors {
			argNames, body, err := store.Method(className, selector)
			if err != nil {
				return err
			}
			class.DefineMethod(selector, argNames, body)
			count++
		}
	}
	if log != nil {
		log.Info("stored methods loaded", "tag", "image", "classes", len(classNames), "methods", count)
	}
	return nil
}

func resolveOrCreateClass(root *value.Environment, name string) (*value.Environment, error) {
	if v, err := root.Get(name); err == nil && v.Kind == value.KindClassTable {
		return v.AsClassTable(), nil
	}
	class := value.NewRootEnvironment()
	class.SetName(name)
	root.Set(name, value.FromClassTable(class))
	return class, nil
}

// ListenAndServe starts the HTTP server on rt.ListenAddr.
func (s *Server) ListenAndServe() error {
	s.Log.Info("son server listening", "tag", "server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Stop gracefully shuts the server down, bounded by ctx.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// evaluateTimeout bounds a single /evaluate request per §5: evaluations
// that overrun it are abandoned (not forcibly killed) and logged.
const evaluateTimeout = 10 * time.Second
