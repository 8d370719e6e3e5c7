package webhooks

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"supernode/core/types"
)

type wrapped struct{ evt *types.Event }

func (w wrapped) EventType() string   { return w.evt.Type }
func (w wrapped) Event() *types.Event { return w.evt }

func TestDispatcherSignsPayload(t *testing.T) {
	var received atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		if r.Header.Get(SignatureHeader) == Sign([]byte("secret"), body) {
			var payload Payload
			if err := json.Unmarshal(body, &payload); err == nil {
				received.Store(payload)
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithEventTypes("supernode.distributed"), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()

	dispatcher.Emit(wrapped{&types.Event{Type: "supernode.deposit", Attributes: map[string]string{"pool": "0x1"}}})
	dispatcher.Emit(wrapped{&types.Event{Type: "supernode.distributed", Attributes: map[string]string{"pool": "0x2"}}})
	waitFor(func() bool { return received.Load() != nil }, time.Second)
	payload, ok := received.Load().(Payload)
	if !ok {
		t.Fatalf("expected a signed delivery")
	}
	if payload.Type != "supernode.distributed" || payload.Attributes["pool"] != "0x2" || payload.DeliveryID == "" {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestDispatcherRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithRetryPolicy(5, 10*time.Millisecond, 20*time.Millisecond))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	defer dispatcher.Close()
	dispatcher.Emit(wrapped{&types.Event{Type: "supernode.claimed"}})
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if got := atomic.LoadInt32(&attempts); got < 3 {
		t.Fatalf("expected retries, got %d", got)
	}
}

func TestCloseDeliversQueuedEvents(t *testing.T) {
	delivered := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(2 * time.Millisecond)
		atomic.AddInt32(&delivered, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"), WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	for i := 0; i < 20; i++ {
		dispatcher.Emit(wrapped{&types.Event{Type: "supernode.claimed"}})
	}
	dispatcher.Close()
	if got := atomic.LoadInt32(&delivered); got != 20 {
		t.Fatalf("expected every queued event delivered on close, got %d", got)
	}

	dispatcher.Emit(wrapped{&types.Event{Type: "supernode.claimed"}})
	dispatcher.Close()
	if got := atomic.LoadInt32(&delivered); got != 20 {
		t.Fatalf("events after close must be ignored, got %d", got)
	}
}

func TestCloseLogsDroppedDeliveries(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	var logs bytes.Buffer
	dispatcher, err := NewDispatcher(server.URL, []byte("secret"),
		WithHTTPClient(server.Client()),
		WithDrainTimeout(50*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(&logs, nil))),
	)
	if err != nil {
		t.Fatalf("dispatcher: %v", err)
	}
	for i := 0; i < 3; i++ {
		dispatcher.Emit(wrapped{&types.Event{Type: "supernode.distributed"}})
	}
	start := time.Now()
	dispatcher.Close()
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("close blocked for %s", elapsed)
	}
	if !strings.Contains(logs.String(), "dropped=2") {
		t.Fatalf("expected dropped count in logs, got:\n%s", logs.String())
	}
}

func TestNewDispatcherValidates(t *testing.T) {
	if _, err := NewDispatcher("", []byte("x")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewDispatcher("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
