package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
)

// ConnectionStatus is the state of a Client's connection.
type ConnectionStatus int32

// Connection states.
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

var statusNames = map[ConnectionStatus]string{
	StatusDisconnected: "disconnected",
	StatusConnecting:   "connecting",
	StatusConnected:    "connected",
	StatusReconnecting: "reconnecting",
	StatusCircuitOpen:  "circuit_open",
}

// String returns the lower-case state name.
func (s ConnectionStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Errors returned by Client.
var (
	ErrNotConnected = stderrors.New("not connected to NATS")
	ErrCircuitOpen  = stderrors.New("circuit breaker is open")
)

// Status is a point-in-time view of a Client, used for health reports.
type Status struct {
	Status          ConnectionStatus
	FailureCount    int32
	LastFailureTime time.Time
	Backoff         time.Duration
	RTT             time.Duration
}

// Client owns one NATS connection. Connect retries with backoff behind a
// circuit breaker; the connection itself reconnects on its own once up.
type Client struct {
	url     string
	cfg     settings
	logger  *slog.Logger
	breaker *breaker
	state   atomic.Int32

	mu     sync.RWMutex
	conn   *nats.Conn
	subs   []*nats.Subscription
	closed bool
}

// NewClient creates a disconnected client for url.
func NewClient(url string, opts ...Option) (*Client, error) {
	cfg := defaultSettings()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, errors.WrapInvalid(err, "Client", "NewClient", "apply option")
		}
	}

	logger := cfg.logger.With("nats_url", url)
	if cfg.name != "" {
		logger = logger.With("nats_client", cfg.name)
	}
	return &Client{
		url:     url,
		cfg:     cfg,
		logger:  logger,
		breaker: newBreaker(cfg.threshold, cfg.maxBackoff),
	}, nil
}

// Status returns the connection state.
func (c *Client) Status() ConnectionStatus {
	if c.breaker.isOpen() {
		return StatusCircuitOpen
	}
	return ConnectionStatus(c.state.Load())
}

// IsHealthy reports whether the client is connected.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// GetStatus returns the state, failure history and round trip time.
func (c *Client) GetStatus() *Status {
	failures, last, wait := c.breaker.snapshot()
	st := &Status{
		Status:          c.Status(),
		FailureCount:    failures,
		LastFailureTime: last,
		Backoff:         wait,
	}
	if rtt, err := c.RTT(); err == nil {
		st.RTT = rtt
	}
	return st
}

// RTT measures the round trip time to the server.
func (c *Client) RTT() (time.Duration, error) {
	conn := c.liveConn()
	if conn == nil {
		return 0, ErrNotConnected
	}
	return conn.RTT()
}

// Connect dials the server, retrying transient failures. An open circuit
// fails immediately with ErrCircuitOpen.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return errors.WrapFatal(ErrNotConnected, "Client", "Connect", "client closed")
	}

	err := retry.Do(ctx, c.cfg.retry, func() error {
		err := c.dial(ctx)
		if stderrors.Is(err, ErrCircuitOpen) {
			return retry.NonRetryable(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	c.logger.Info("Connected to NATS")
	c.notify(true, false)
	return nil
}

func (c *Client) dial(ctx context.Context) error {
	if c.breaker.isOpen() {
		return ErrCircuitOpen
	}
	c.state.Store(int32(StatusConnecting))

	type result struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan result, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.natsOptions()...)
		done <- result{conn, err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		res.err = ctx.Err()
		go func() {
			if late := <-done; late.conn != nil {
				late.conn.Close()
			}
		}()
	}

	if res.err != nil {
		c.state.Store(int32(StatusDisconnected))
		if tripped, wait := c.breaker.fail(time.Now()); tripped {
			c.logger.Warn("Circuit breaker opened", "backoff", wait)
			time.AfterFunc(wait, c.breaker.halfOpen)
		}
		if c.breaker.isOpen() {
			return ErrCircuitOpen
		}
		return errors.WrapTransient(res.err, "Client", "Connect", "establish connection")
	}

	c.mu.Lock()
	c.conn = res.conn
	c.mu.Unlock()
	c.state.Store(int32(StatusConnected))
	c.breaker.reset()
	return nil
}

func (c *Client) natsOptions() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.cfg.maxReconnects),
		nats.ReconnectWait(c.cfg.reconnectWait),
		nats.PingInterval(c.cfg.pingInterval),
		nats.Timeout(c.cfg.timeout),
		nats.DrainTimeout(c.cfg.drainTimeout),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			c.state.Store(int32(StatusReconnecting))
			c.logger.Warn("NATS disconnected", "error", err)
			c.notify(false, true)
		}),
		nats.ReconnectHandler(func(*nats.Conn) {
			c.state.Store(int32(StatusConnected))
			c.breaker.reset()
			c.logger.Info("NATS reconnected")
			c.notify(true, true)
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			c.state.Store(int32(StatusDisconnected))
			c.notify(false, true)
		}),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			c.logger.Error("NATS error", "error", err)
		}),
	}
	if c.cfg.name != "" {
		opts = append(opts, nats.Name(c.cfg.name))
	}
	return opts
}

func (c *Client) notify(healthy, async bool) {
	if c.cfg.onHealth == nil {
		return
	}
	if async {
		go c.cfg.onHealth(healthy)
		return
	}
	c.cfg.onHealth(healthy)
}

func (c *Client) liveConn() *nats.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil || !c.conn.IsConnected() {
		return nil
	}
	return c.conn
}

// Subscribe registers handler for subject. Handlers run on the NATS
// dispatcher goroutine and must not block.
func (c *Client) Subscribe(subject string, handler func(data []byte)) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || !c.conn.IsConnected() {
		return ErrNotConnected
	}
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) { handler(msg.Data) })
	if err != nil {
		return errors.WrapTransient(err, "Client", "Subscribe", subject)
	}
	c.subs = append(c.subs, sub)
	return nil
}

// Publish sends data on subject.
func (c *Client) Publish(subject string, data []byte) error {
	conn := c.liveConn()
	if conn == nil {
		return ErrNotConnected
	}
	return conn.Publish(subject, data)
}

// Close unsubscribes, drains within the drain timeout or ctx, and closes the
// connection. Later calls return nil.
func (c *Client) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs, conn := c.subs, c.conn
	c.subs, c.conn = nil, nil
	c.mu.Unlock()

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			errs = append(errs, errors.Wrap(err, "Client", "Close", "unsubscribe"))
		}
	}

	if conn != nil {
		if err := drain(ctx, conn, c.cfg.drainTimeout); err != nil {
			errs = append(errs, err)
		}
		conn.Close()
	}

	c.state.Store(int32(StatusDisconnected))
	return errors.Join(errs...)
}

func drain(ctx context.Context, conn *nats.Conn, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- conn.Drain() }()

	select {
	case err := <-done:
		if err != nil && !stderrors.Is(err, nats.ErrConnectionClosed) {
			return errors.Wrap(err, "Client", "Close", "drain connection")
		}
		return nil
	case <-ctx.Done():
		return errors.WrapTransient(fmt.Errorf("drain: %w", ctx.Err()), "Client", "Close", "drain")
	}
}

// PubSub is the part of Client the transport routines use.
type PubSub interface {
	Connect(ctx context.Context) error
	Publish(subject string, data []byte) error
	Subscribe(subject string, handler func(data []byte)) error
	Close(ctx context.Context) error
	IsHealthy() bool
	GetStatus() *Status
}

var _ PubSub = (*Client)(nil)

// Dialer creates a disconnected PubSub for url. opts come from the calling
// routine and apply after the dialer's own.
type Dialer func(url string, opts ...Option) (PubSub, error)

// NewDialer returns a Dialer creating Clients tuned by cfg.
func NewDialer(cfg Config) Dialer {
	base := cfg.Options()
	return func(url string, opts ...Option) (PubSub, error) {
		all := make([]Option, 0, len(base)+len(opts))
		all = append(all, base...)
		all = append(all, opts...)
		return NewClient(url, all...)
	}
}

// DefaultDialer creates Clients with default settings.
var DefaultDialer = NewDialer(Config{})
