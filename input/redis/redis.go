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
const TypeName = "MessageFromRedis"

// Field is the stream entry field holding the encoded message.
const Field = "msg"

// DefaultURL is used when no url is configured.
const DefaultURL = "redis://localhost:6379/0"

// Config holds the constructor arguments of a MessageFromRedis routine.
type Config struct {
	InKey string // stream key
	URL   string // redis:// URL

	// MostRecent skips to the newest entry on every read instead of consuming
	// the stream in order.
	MostRecent bool

	Retry retry.Config // connection attempts in Setup
}

// MessageFromRedis reads encoded messages from a Redis stream, records their
// entry into the owning component and puts them into its queue, evicting the
// oldest message when the queue is full. Only entries added after Setup are read.
type MessageFromRedis struct {
	*routine.Base

	queue  *queue.Queue
	cfg    Config
	client *goredis.Client
	lastID string
}

// New creates a detached MessageFromRedis feeding q.
func New(name string, q *queue.Queue, cfg Config) (*MessageFromRedis, error) {
	if cfg.InKey == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageFromRedis", "New", "in_key")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = retry.Quick()
	}
	return &MessageFromRedis{Base: routine.NewBase(name), queue: q, cfg: cfg}, nil
}

// Setup connects and positions the reader after the current last entry.
func (r *MessageFromRedis) Setup(ctx context.Context) error {
	opts, err := goredis.ParseURL(r.cfg.URL)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err),
			"MessageFromRedis", "Setup", "parse url")
	}
	client := goredis.NewClient(opts)
	if err := retry.Do(ctx, r.cfg.Retry, func() error { return client.Ping(ctx).Err() }); err != nil {
		_ = client.Close()
		return errors.WrapTransient(err, "MessageFromRedis", "Setup", "connect to "+r.cfg.URL)
	}

	last, err := client.XRevRangeN(ctx, r.cfg.InKey, "+", "-", 1).Result()
	if err != nil {
		_ = client.Close()
		return errors.WrapTransient(err, "MessageFromRedis", "Setup", "XREVRANGE "+r.cfg.InKey)
	}
	r.lastID = "0-0"
	if len(last) > 0 {
		r.lastID = last[0].ID
	}
	r.client = client
	r.Logger().Info("Connected to Redis", "stream", r.cfg.InKey, "from_id", r.lastID)
	return nil
}

// MainLogic reads at most one entry. It reports no work when the stream has
// nothing new.
func (r *MessageFromRedis) MainLogic(ctx context.Context) (bool, error) {
	entry, ok, err := r.next(ctx)
	if err != nil || !ok {
		return false, err
	}
	r.lastID = entry.ID

	raw, _ := entry.Values[Field].(string)
	msg, err := r.Generator().Decode([]byte(raw))
	if err != nil {
		// A malformed entry is skipped; the stream is shared with other producers.
		r.Logger().Warn("Skipping undecodable stream entry", "id", entry.ID, "error", err)
		return true, nil
	}
	msg.RecordEntry(r.ComponentName())
	r.queue.Put(msg)
	return true, nil
}

func (r *MessageFromRedis) next(ctx context.Context) (goredis.XMessage, bool, error) {
	if r.cfg.MostRecent {
		entries, err := r.client.XRevRangeN(ctx, r.cfg.InKey, "+", "-", 1).Result()
		if err != nil {
			return goredis.XMessage{}, false, errors.WrapTransient(err, "MessageFromRedis", "MainLogic", "XREVRANGE "+r.cfg.InKey)
		}
		if len(entries) == 0 || entries[0].ID == r.lastID {
			return goredis.XMessage{}, false, nil
		}
		return entries[0], true, nil
	}

	streams, err := r.client.XRead(ctx, &goredis.XReadArgs{
		Streams: []string{r.cfg.InKey, r.lastID},
		Count:   1,
		Block:   -1,
	}).Result()
	if errors.Is(err, goredis.Nil) {
		return goredis.XMessage{}, false, nil
	}
	if err != nil {
		return goredis.XMessage{}, false, errors.WrapTransient(err, "MessageFromRedis", "MainLogic", "XREAD "+r.cfg.InKey)
	}
	for _, s := range streams {
		if len(s.Messages) > 0 {
			return s.Messages[0], true, nil
		}
	}
	return goredis.XMessage{}, false, nil
}

// Cleanup closes the connection.
func (r *MessageFromRedis) Cleanup(context.Context) error {
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// UsesQueue implements routine.Routine.
func (r *MessageFromRedis) UsesQueue(name string) bool {
	return r.queue != nil && r.queue.Name() == name
}
