// Package webhooks delivers selected ledger events to an external HTTP
// endpoint, signed with HMAC-SHA256 and retried with exponential backoff.
package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"supernode/core/events"
)

const (
	defaultMaxAttempts = 5
	defaultMinBackoff  = 2 * time.Second
	defaultMaxBackoff  = 30 * time.Second
	defaultDrainWait   = 5 * time.Second
	queueSize          = 256

	// SignatureHeader carries "sha256=<hex hmac of body>".
	SignatureHeader = "X-Supernode-Signature"
	// EventHeader carries the event type.
	EventHeader = "X-Supernode-Event"
)

// Payload is the JSON body of a delivery.
type Payload struct {
	Type       string            `json:"type"`
	DeliveryID string            `json:"deliveryId"`
	Attributes map[string]string `json:"attributes"`
	EmittedAt  time.Time         `json:"emittedAt"`
}

// Dispatcher implements events.Emitter. Matching events are queued and sent
// by a single worker so delivery order follows emission order.
type Dispatcher struct {
	endpoint    string
	secret      []byte
	types       map[string]struct{}
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	drainWait   time.Duration

	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan delivery
	closing chan struct{}
	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
}

type delivery struct {
	eventType string
	body      []byte
}

// Option mutates dispatcher configuration.
type Option func(*Dispatcher)

// WithHTTPClient overrides the HTTP client used for deliveries.
func WithHTTPClient(client *http.Client) Option {
	return func(d *Dispatcher) {
		if client != nil {
			d.client = client
		}
	}
}

// WithRetryPolicy overrides the retry configuration.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(d *Dispatcher) {
		if maxAttempts > 0 {
			d.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			d.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			d.maxBackoff = maxBackoff
		}
	}
}

// WithEventTypes restricts delivery to the listed event types. With no
// restriction every event is delivered.
func WithEventTypes(types ...string) Option {
	return func(d *Dispatcher) {
		for _, t := range types {
			if t = strings.TrimSpace(t); t != "" {
				d.types[t] = struct{}{}
			}
		}
	}
}

// WithDrainTimeout bounds how long Close spends sending queued deliveries.
func WithDrainTimeout(wait time.Duration) Option {
	return func(d *Dispatcher) {
		if wait > 0 {
			d.drainWait = wait
		}
	}
}

// WithLogger sets the logger for failed deliveries.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// NewDispatcher constructs a dispatcher and starts its worker.
func NewDispatcher(endpoint string, secret []byte, opts ...Option) (*Dispatcher, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		types:       make(map[string]struct{}),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.Default(),
		maxAttempts: defaultMaxAttempts,
		minBackoff:  defaultMinBackoff,
		maxBackoff:  defaultMaxBackoff,
		drainWait:   defaultDrainWait,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, queueSize),
		closing:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = d.logger.With("component", "webhooks")
	d.wg.Add(1)
	go d.worker()
	return d, nil
}

// Close stops accepting events and gives every queued delivery one attempt.
// Deliveries still queued when the drain timeout passes are dropped and
// counted in the log.
func (d *Dispatcher) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.closing)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(d.drainWait):
		d.cancel()
		<-done
	}
	d.cancel()
}

// Emit implements events.Emitter. A full queue drops the event.
func (d *Dispatcher) Emit(evt events.Event) {
	raw, ok := events.Unwrap(evt)
	if d == nil || !ok {
		return
	}
	if len(d.types) > 0 {
		if _, wanted := d.types[raw.Type]; !wanted {
			return
		}
	}
	body, err := json.Marshal(Payload{
		Type:       raw.Type,
		DeliveryID: uuid.NewString(),
		Attributes: raw.Clone().Attributes,
		EmittedAt:  time.Now().UTC(),
	})
	if err != nil {
		d.logger.Error("webhook encode failed", "type", raw.Type, "error", err)
		return
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.logger.Debug("webhook dispatcher closed, ignoring event", "type", raw.Type)
		return
	}
	select {
	case d.queue <- delivery{eventType: raw.Type, body: body}:
	default:
		d.logger.Warn("webhook queue full, dropping event", "type", raw.Type)
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case <-d.closing:
			d.drain()
			return
		default:
		}
		select {
		case job := <-d.queue:
			d.process(job)
		case <-d.closing:
		}
	}
}

// drain sends what is left in the queue once Close has been called.
func (d *Dispatcher) drain() {
	delivered, failed, dropped := 0, 0, 0
	for {
		select {
		case job := <-d.queue:
			if d.ctx.Err() != nil {
				dropped++
				continue
			}
			if err := d.attempt(job); err != nil {
				failed++
				d.logger.Warn("webhook delivery failed during shutdown", "type", job.eventType, "error", err)
				continue
			}
			delivered++
		default:
			if failed > 0 || dropped > 0 {
				d.logger.Warn("webhook queue not fully delivered on shutdown", "delivered", delivered, "failed", failed, "dropped", dropped)
			} else if delivered > 0 {
				d.logger.Info("webhook queue drained", "delivered", delivered)
			}
			return
		}
	}
}

func (d *Dispatcher) process(job delivery) {
	attempt := 0
	backoff := d.minBackoff
	for {
		attempt++
		err := d.attempt(job)
		if err == nil {
			return
		}
		if attempt >= d.maxAttempts {
			d.logger.Error("webhook delivery abandoned", "type", job.eventType, "attempts", attempt, "error", err)
			return
		}
		select {
		case <-time.After(backoff):
		case <-d.closing:
			// Shutdown skips the remaining backoff and tries once more.
			if err := d.attempt(job); err != nil {
				d.logger.Warn("webhook delivery failed during shutdown", "type", job.eventType, "attempts", attempt+1, "error", err)
			}
			return
		}
		backoff = nextBackoff(backoff, d.maxBackoff)
	}
}

func (d *Dispatcher) attempt(job delivery) error {
	ctx, cancel := d.ctx, context.CancelFunc(func() {})
	if d.client.Timeout > 0 {
		ctx, cancel = context.WithTimeout(d.ctx, d.client.Timeout)
	}
	defer cancel()
	return d.send(ctx, job)
}

func (d *Dispatcher) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(EventHeader, job.eventType)
	req.Header.Set(SignatureHeader, Sign(d.secret, job.body))
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
