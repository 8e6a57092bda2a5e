// Package bridge implements SON's one channel to host side effects: the
// distinguished Bridge object dispatch bypasses class resolution for.
// Grounded on lib/runtime/bridge.go's BashBridge shape (a struct holding
// host-callable entries keyed by selector, a debug flag, a mutex guarding
// shared host state) generalized from "shell out to bash" to "log /
// schedule / fetch".
package bridge

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sonlang/son/logging"
	"github.com/sonlang/son/value"
)

// Invoker runs a Block with no arguments, exactly as eval.Evaluator's
// InvokeBlock does. The bridge depends on this narrow interface instead of
// importing package eval directly, since eval already depends on value and
// a bridge->eval->value cycle would be illegal.
type Invoker interface {
	InvokeBlock(block *value.Block, args []value.Value) (value.Value, error)
}

// Config configures a Bridge's host-facing behaviour.
type Config struct {
	FetchTimeout time.Duration // zero means http.DefaultClient's own (no) timeout
}

// New builds the Bridge object with host implementations for log:,
// setTimeout:delay:, and fetch:options:. mu is the single lock the caller
// also uses to guard the environment instance the scheduled callbacks will
// run against (§4.7: "serialised against concurrent image mutation by the
// same lock the HTTP surface uses for a given environment instance").
func New(log *slog.Logger, ev Invoker, mu *sync.Mutex, cfg Config) *value.Bridge {
	client := &http.Client{Timeout: cfg.FetchTimeout}

	b := &value.Bridge{Entries: map[string]value.BridgeFunc{}}
	self := func() value.Value { return value.FromBridge(b) }

	b.Entries["log:"] = func(args []value.Value) (value.Value, error) {
		if len(args) != 1 {
			return value.Null(), fmt.Errorf("log: expects exactly one argument")
		}
		text := args[0].PrintString()
		log.Info(text, "tag", logging.Transcript)
		publishTranscript(text)
		return self(), nil
	}

	b.Entries["setTimeout:delay:"] = func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Null(), fmt.Errorf("setTimeout:delay: expects exactly two arguments")
		}
		block := args[0].AsBlock()
		if block == nil {
			return value.Null(), fmt.Errorf("setTimeout:delay: first argument must be a Block")
		}
		ms := args[1].AsNumber()
		if args[1].Kind != value.KindNumber || ms < 0 || ms != float64(int64(ms)) {
			return value.Null(), fmt.Errorf("setTimeout:delay: second argument must be a non-negative integer")
		}
		delay := time.Duration(int64(ms)) * time.Millisecond

		log.Debug("scheduling callback", "tag", "bridge", "selector", "setTimeout:delay:", "delayMs", int64(ms))
		time.AfterFunc(delay, func() {
			mu.Lock()
			defer mu.Unlock()
			runScheduledCallback(log, ev, block)
		})
		return self(), nil
	}

	b.Entries["fetch:options:"] = func(args []value.Value) (value.Value, error) {
		if len(args) != 2 {
			return value.Null(), fmt.Errorf("fetch:options: expects exactly two arguments")
		}
		if args[0].Kind != value.KindString {
			return value.Null(), fmt.Errorf("fetch:options: first argument must be a String URL")
		}
		url := args[0].AsString()
		method, headers, body := decodeFetchOptions(args[1])

		req, err := http.NewRequest(method, url, strings.NewReader(body))
		if err != nil {
			log.Warn("fetch request build failed", "tag", "bridge", "url", url, "error", err)
			return value.Null(), nil
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}

		log.Debug("outbound fetch", "tag", "bridge", "method", method, "url", url)
		resp, err := client.Do(req)
		if err != nil {
			log.Warn("fetch failed", "tag", "bridge", "url", url, "error", err)
			return value.Null(), nil
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			log.Warn("fetch response read failed", "tag", "bridge", "url", url, "error", err)
			return value.Null(), nil
		}

		respHeaders := make(map[string]value.Value, len(resp.Header))
		for k := range resp.Header {
			respHeaders[k] = value.String(resp.Header.Get(k))
		}

		return value.Object(map[string]value.Value{
			"status":  value.Number(float64(resp.StatusCode)),
			"headers": value.Object(respHeaders),
			"body":    value.String(string(respBody)),
		}), nil
	}

	return b
}

// decodeFetchOptions reads method/headers/body out of optionsObject,
// defaulting to GET with no headers and an empty body per §4.7.
func decodeFetchOptions(opts value.Value) (method string, headers map[string]string, body string) {
	method = http.MethodGet
	headers = map[string]string{}
	obj := opts.AsObject()
	if obj == nil {
		return method, headers, ""
	}
	if m, ok := obj.Fields["method"]; ok && m.Kind == value.KindString && m.AsString() != "" {
		method = strings.ToUpper(m.AsString())
	}
	if h, ok := obj.Fields["headers"]; ok {
		if hobj := h.AsObject(); hobj != nil {
			keys := make([]string, 0, len(hobj.Fields))
			for k := range hobj.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				headers[k] = hobj.Fields[k].PrintString()
			}
		}
	}
	if bv, ok := obj.Fields["body"]; ok && bv.Kind == value.KindString {
		body = bv.AsString()
	}
	return method, headers, body
}

// runScheduledCallback re-enters the evaluator on the timer's own
// goroutine. An unmatched return signal escaping a scheduled callback
// cannot cross the asynchronous boundary (§4.7): InvokeBlock converts a
// bare local return, or a ^ in a block with no home context, to a returned
// SonError, which is logged as a failure; a non-local return aimed at a
// home method that has already returned is re-panicked by InvokeBlock and
// recovered and logged here. Either way the callback completes without a
// result.
func runScheduledCallback(log *slog.Logger, ev Invoker, block *value.Block) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("scheduled callback panicked", "tag", "bridge", "panic", fmt.Sprint(r))
		}
	}()
	_, err := ev.InvokeBlock(block, nil)
	if err != nil {
		log.Warn("scheduled callback failed", "tag", "bridge", "error", err)
		return
	}
	log.Debug("scheduled callback completed", "tag", "bridge")
}

// transcript broadcast, consumed by the HTTP surface's /ws push path.
var (
	transcriptMu   sync.Mutex
	transcriptSubs = map[chan string]struct{}{}
)

// Subscribe registers a channel to receive every future log: line. The
// caller must call the returned function to unsubscribe when done (on
// WebSocket connection close).
func Subscribe(ch chan string) (unsubscribe func()) {
	transcriptMu.Lock()
	transcriptSubs[ch] = struct{}{}
	transcriptMu.Unlock()
	return func() {
		transcriptMu.Lock()
		delete(transcriptSubs, ch)
		transcriptMu.Unlock()
	}
}

func publishTranscript(line string) {
	transcriptMu.Lock()
	defer transcriptMu.Unlock()
	for ch := range transcriptSubs {
		select {
		case ch <- line:
		default:
			// Slow subscriber: drop rather than block the evaluator.
		}
	}
}
