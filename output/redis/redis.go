package redis

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "MessageToRedis"

// Field is the stream entry field holding the encoded message.
const Field = "msg"

// Defaults used when the topology leaves a parameter out.
const (
	DefaultURL    = "redis://localhost:6379/0"
	DefaultMaxLen = 1000
)

// Config holds the constructor arguments of a MessageToRedis routine.
type Config struct {
	OutKey string       // stream key
	URL    string       // redis:// URL
	MaxLen int64        // stream length cap, 0 keeps every entry
	Retry  retry.Config // connection attempts in Setup
}

// MessageToRedis takes messages from its queue, records their exit from the
// owning component and appends them to a Redis stream capped at MaxLen.
type MessageToRedis struct {
	*routine.Base

	queue  *queue.Queue
	cfg    Config
	client *goredis.Client
}

// New creates a detached MessageToRedis draining q.
func New(name string, q *queue.Queue, cfg Config) (*MessageToRedis, error) {
	if cfg.OutKey == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageToRedis", "New", "out_key")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Quick()
	}
	return &MessageToRedis{Base: routine.NewBase(name), queue: q, cfg: cfg}, nil
}

// Setup connects to Redis, retrying per Config.Retry.
func (r *MessageToRedis) Setup(ctx context.Context) error {
	client, err := connect(ctx, r.cfg.URL, r.cfg.Retry)
	if err != nil {
		return errors.WrapTransient(err, "MessageToRedis", "Setup", "connect to "+r.cfg.URL)
	}
	r.client = client
	r.Logger().Info("Connected to Redis", "stream", r.cfg.OutKey)
	return nil
}

// MainLogic publishes one message. It reports no work when the queue is empty.
func (r *MessageToRedis) MainLogic(ctx context.Context) (bool, error) {
	msg, ok := r.queue.Get()
	if !ok {
		return false, nil
	}
	msg.RecordExit(r.ComponentName())

	data, err := msg.Encode()
	if err != nil {
		return false, err
	}

	args := &goredis.XAddArgs{
		Stream: r.cfg.OutKey,
		Values: map[string]any{Field: data},
	}
	if r.cfg.MaxLen > 0 {
		args.MaxLen = r.cfg.MaxLen
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return false, errors.WrapTransient(err, "MessageToRedis", "MainLogic", "XADD "+r.cfg.OutKey)
	}
	return true, nil
}

// Cleanup closes the connection.
func (r *MessageToRedis) Cleanup(context.Context) error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// UsesQueue implements routine.Routine.
func (r *MessageToRedis) UsesQueue(name string) bool {
	return r.queue != nil && r.queue.Name() == name
}

func connect(ctx context.Context, url string, cfg retry.Config) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"MessageToRedis", "connect", "parse url")
	}
	client := goredis.NewClient(opts)
	err = retry.Do(ctx, cfg, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
