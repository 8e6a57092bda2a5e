package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sonlang/son/config"
	"github.com/sonlang/son/image"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	store, err := image.Open("file::memory:?cache=shared")
	if err != nil {
		t.Fatalf("image.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt := &config.Runtime{ListenAddr: "localhost:0", StorePath: ":memory:", FetchTimeout: time.Second}
	srv, err := New(store, log, rt)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return srv
}

func doRequest(srv *Server, method, path string, body []byte) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	srv.mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleClassesEmptyStore(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, "GET", "/classes", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body struct{ Classes []string }
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if len(body.Classes) != 0 {
		t.Errorf("classes = %v, want empty", body.Classes)
	}
}

func TestHandleMethodsUnknownClassIs404(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, "GET", "/methods/Ghost", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleMethodUnknownIs404(t *testing.T) {
	srv := newTestServer(t)
	rec := doRequest(srv, "GET", "/method/Number/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestHandleSaveMethodThenRetrieve(t *testing.T) {
	srv := newTestServer(t)

	reqBody, _ := json.Marshal(saveMethodRequest{
		ClassName: "Number",
		Selector:  "double:",
		Arguments: []string{"x"},
		Body:      []any{[]any{"^", []any{"$x", "*", 2.0}}},
	})
	rec := doRequest(srv, "POST", "/method", reqBody)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201, body = %s", rec.Code, rec.Body.String())
	}

	rec2 := doRequest(srv, "GET", "/method/Number/double:", nil)
	if rec2.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec2.Code, rec2.Body.String())
	}

	class, err := resolveOrCreateClass(srv.Root, "Number")
	if err != nil {
		t.Fatalf("resolveOrCreateClass: %v", err)
	}
	if _, ok := class.LookupMethodLocally("double:"); !ok {
		t.Error("expected double: to be live-patched onto the in-memory Number class table")
	}
}

func TestHandleSaveMethodRejectsMissingFields(t *testing.T) {
	srv := newTestServer(t)
	reqBody, _ := json.Marshal(saveMethodRequest{ClassName: "", Selector: "double:"})
	rec := doRequest(srv, "POST", "/method", reqBody)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestHandleEvaluateSuccess(t *testing.T) {
	srv := newTestServer(t)
	reqBody, _ := json.Marshal(evaluateRequest{Program: []any{1.0, "+", 2.0}})
	rec := doRequest(srv, "POST", "/evaluate", reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Result any `json:"result"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Result.(float64) != 3 {
		t.Errorf("result = %v, want 3", resp.Result)
	}
}

func TestHandleEvaluateErrorIsUnprocessable(t *testing.T) {
	srv := newTestServer(t)
	reqBody, _ := json.Marshal(evaluateRequest{Program: []any{1.0, "divideByGoose"}})
	rec := doRequest(srv, "POST", "/evaluate", reqBody)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Error struct {
			Tag string `json:"tag"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if resp.Error.Tag != "MessageNotUnderstood" {
		t.Errorf("error tag = %q, want MessageNotUnderstood", resp.Error.Tag)
	}
}

func TestHandleEvaluateTranscriptIncludesBridgeLogLines(t *testing.T) {
	srv := newTestServer(t)
	program := []any{"$Bridge", "log:", "hi from a test"}

	reqBody, _ := json.Marshal(evaluateRequest{Program: program})
	rec := doRequest(srv, "POST", "/evaluate", reqBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body = %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Transcript []string `json:"transcript"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	found := false
	for _, line := range resp.Transcript {
		if line == "hi from a test" {
			found = true
		}
	}
	if !found {
		t.Errorf("transcript %v does not contain the logged line", resp.Transcript)
	}
}

