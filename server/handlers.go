package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sonlang/son/eval"
	"github.com/sonlang/son/image"
	"github.com/sonlang/son/value"
)

func (s *Server) routes() {
	s.mux.HandleFunc("GET /base-environment", s.handleBaseEnvironment)
	s.mux.HandleFunc("GET /classes", s.handleClasses)
	s.mux.HandleFunc("GET /methods/{className}", s.handleMethods)
	s.mux.HandleFunc("GET /method/{className}/{selector}", s.handleMethod)
	s.mux.HandleFunc("POST /method", s.handleSaveMethod)
	s.mux.HandleFunc("POST /evaluate", s.handleEvaluate)
	s.mux.HandleFunc("GET /ws", s.handleWebSocket)
}

func (s *Server) handleBaseEnvironment(w http.ResponseWriter, r *http.Request) {
	blob, err := s.Store.BaseEnvironment()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, blob)
}

func (s *Server) handleClasses(w http.ResponseWriter, r *http.Request) {
	names, err := s.Store.Classes()
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"classes": names})
}

func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	className := r.PathValue("className")
	selectors, err := s.Store.Methods(className)
	if errors.Is(err, image.ErrClassNotFound) {
		http.Error(w, "class not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"methods": selectors})
}

func (s *Server) handleMethod(w http.ResponseWriter, r *http.Request) {
	className := r.PathValue("className")
	selector := r.PathValue("selector")
	argNames, body, err := s.Store.Method(className, selector)
	if errors.Is(err, image.ErrClassNotFound) || errors.Is(err, image.ErrMethodNotFound) {
		http.Error(w, "method not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"selector":  selector,
		"arguments": argNames,
		"body":      body,
	})
}

type saveMethodRequest struct {
	ClassName string   `json:"className"`
	Selector  string   `json:"selector"`
	Arguments []string `json:"arguments"`
	Body      any      `json:"body"`
}

func (s *Server) handleSaveMethod(w http.ResponseWriter, r *http.Request) {
	var req saveMethodRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}
	if req.ClassName == "" || req.Selector == "" {
		http.Error(w, "className and selector are required", http.StatusBadRequest)
		return
	}

	s.Mu.Lock()
	created, err := s.Store.SaveMethod(req.ClassName, req.Selector, req.Arguments, req.Body)
	if err == nil {
		class, classErr := resolveOrCreateClass(s.Root, req.ClassName)
		if classErr == nil {
			class.DefineMethod(req.Selector, req.Arguments, req.Body)
		}
	}
	s.Mu.Unlock()

	if err != nil {
		s.Log.Warn("method save rejected", "tag", "image", "class", req.ClassName, "selector", req.Selector, "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Log.Info("method save accepted", "tag", "image", "class", req.ClassName, "selector", req.Selector, "created", created)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, map[string]any{"selector": req.Selector})
}

type evaluateRequest struct {
	Program any `json:"program"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return
	}

	// requestID tags this evaluation's diagnostic record (§3): its outcome,
	// abandonment, or panic log entry, the same way the teacher's object
	// space tags each instance with a generated id. Transcript lines logged
	// by the bridge do not carry it.
	requestID := uuid.New().String()
	started := time.Now()

	ctx, cancel := context.WithTimeout(r.Context(), evaluateTimeout)
	defer cancel()

	transcript := make(chan string, 64)
	unsubscribe := subscribeTranscript(transcript)
	defer unsubscribe()

	type outcome struct {
		result   value.Value
		err      error
		panicked bool
	}
	done := make(chan outcome, 1)

	s.Mu.Lock()
	go func() {
		defer s.Mu.Unlock()
		// A genuine Go panic (a bug reachable from a crafted AST, not a
		// control signal — eval.Evaluate already converts those) must
		// never crash this goroutine's host process; recover and report
		// it as an internal error instead, per §7.
		defer func() {
			if rec := recover(); rec != nil {
				s.Log.Error("evaluation panicked", "tag", "server", "requestId", requestID, "panic", rec)
				done <- outcome{err: fmt.Errorf("internal error: %v", rec), panicked: true}
			}
		}()
		result, err := s.Eval.Evaluate(req.Program, s.Root)
		done <- outcome{result: result, err: err}
	}()

	var lines []string
	for {
		select {
		case line := <-transcript:
			lines = append(lines, line)
		case out := <-done:
			for {
				select {
				case line := <-transcript:
					lines = append(lines, line)
					continue
				default:
				}
				break
			}
			if out.panicked {
				s.internalError(w, out.err)
				return
			}
			s.logEvaluation(requestID, started, out.err)
			s.respondEvaluate(w, out.result, out.err, lines)
			return
		case <-ctx.Done():
			s.Log.Warn("evaluation abandoned", "tag", "server", "requestId", requestID, "reason", ctx.Err())
			http.Error(w, "evaluation timed out", http.StatusGatewayTimeout)
			return
		}
	}
}

// logEvaluation emits the diagnostic record §3 requires for every top-level
// evaluation: a requestId, its wall-clock duration, and, on error, the
// error's taxonomy tag and message. It never affects the response.
func (s *Server) logEvaluation(requestID string, started time.Time, err error) {
	duration := time.Since(started)
	if err == nil {
		s.Log.Info("evaluation completed", "tag", "eval", "requestId", requestID, "duration", duration, "event", "evaluate")
		return
	}

	tag := "SonError"
	switch {
	case errors.As(err, new(*value.VariableNotFoundError)):
		tag = "VariableNotFound"
	case errors.As(err, new(*eval.MessageNotUnderstoodError)):
		tag = "MessageNotUnderstood"
	case errors.As(err, new(*eval.ArgumentError)):
		tag = "ArgumentError"
	}
	s.Log.Warn("evaluation failed", "tag", "eval", "requestId", requestID, "duration", duration, "event", "evaluate", "errorTag", tag, "error", err.Error())
}

func (s *Server) respondEvaluate(w http.ResponseWriter, result value.Value, err error, transcript []string) {
	if err != nil {
		writeEvalError(w, err, transcript)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"result":     result.ToASTNode(),
		"transcript": transcript,
	})
}

func writeEvalError(w http.ResponseWriter, err error, transcript []string) {
	tag := "SonError"
	switch {
	case errors.As(err, new(*value.VariableNotFoundError)):
		tag = "VariableNotFound"
	case errors.As(err, new(*eval.MessageNotUnderstoodError)):
		tag = "MessageNotUnderstood"
	case errors.As(err, new(*eval.ArgumentError)):
		tag = "ArgumentError"
	case errors.As(err, new(*eval.SonError)):
		tag = "SonError"
	}
	writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
		"error": map[string]any{
			"tag":     tag,
			"message": err.Error(),
		},
		"transcript": transcript,
	})
}

func (s *Server) internalError(w http.ResponseWriter, err error) {
	s.Log.Error("internal server error", "tag", "server", "error", err)
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
