package nats

import (
	"context"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/natsclient"
	"github.com/ItamarWilf/PipeRT/pkg/buffer"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "MessageFromNATS"

// DefaultURL is used when no url is configured.
const DefaultURL = "nats://localhost:4222"

// DefaultBacklog is how many undelivered payloads are held between the
// subscription callback and MainLogic before the oldest is dropped.
const DefaultBacklog = 16

const closeTimeout = 5 * time.Second

// MessageFromNATS subscribes to a subject, records the entry of every
// received message into the owning component and puts it into its queue.
// The subscription callback only buffers raw payloads; decoding happens in
// MainLogic on the routine's own goroutine.
type MessageFromNATS struct {
	*routine.Base

	queue   *queue.Queue
	subject string
	url     string
	backlog int
	dial    natsclient.Dialer

	conn    natsclient.Holder
	pending buffer.Buffer[[]byte]
}

var _ routine.HealthReporter = (*MessageFromNATS)(nil)

// New creates a detached MessageFromNATS feeding q. A nil dial selects
// natsclient.DefaultDialer.
func New(name string, q *queue.Queue, subject, url string, backlog int, dial natsclient.Dialer) (*MessageFromNATS, error) {
	if subject == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageFromNATS", "New", "subject")
	}
	if url == "" {
		url = DefaultURL
	}
	if backlog < 1 {
		backlog = DefaultBacklog
	}
	if dial == nil {
		dial = natsclient.DefaultDialer
	}
	return &MessageFromNATS{
		Base:    routine.NewBase(name),
		queue:   q,
		subject: subject,
		url:     url,
		backlog: backlog,
		dial:    dial,
	}, nil
}

// Setup connects and subscribes.
func (r *MessageFromNATS) Setup(ctx context.Context) error {
	pending, err := buffer.NewCircularBuffer(r.backlog,
		buffer.WithOverflowPolicy[[]byte](buffer.DropOldest))
	if err != nil {
		return errors.WrapInvalid(err, "MessageFromNATS", "Setup", "create backlog")
	}
	r.pending = pending

	client, err := r.dial(r.url,
		natsclient.WithLogger(r.Logger()),
		natsclient.WithName(r.ComponentName()+"."+r.Name()),
		natsclient.WithHealthChangeCallback(r.onHealthChange),
	)
	if err != nil {
		return errors.WrapInvalid(err, "MessageFromNATS", "Setup", "create client")
	}
	r.conn.Set(client)
	if err := client.Connect(ctx); err != nil {
		return errors.WrapTransient(err, "MessageFromNATS", "Setup", "connect to "+r.url)
	}

	if err := client.Subscribe(r.subject, r.receive); err != nil {
		return errors.WrapTransient(err, "MessageFromNATS", "Setup", "subscribe to "+r.subject)
	}
	r.Logger().Info("Subscribed to NATS", "subject", r.subject)
	return nil
}

func (r *MessageFromNATS) onHealthChange(healthy bool) {
	if healthy {
		r.Logger().Info("NATS subscription live", "subject", r.subject)
		return
	}
	r.Logger().Warn("NATS subscription interrupted", "subject", r.subject)
}

// Healthy reports the state of the NATS connection.
func (r *MessageFromNATS) Healthy() (bool, string) { return r.conn.Healthy() }

func (r *MessageFromNATS) receive(data []byte) {
	buf := make([]byte, len(data))
	copy(buf, data)
	_, _ = r.pending.Write(buf)
}

// MainLogic delivers one buffered message. It reports no work when nothing
// arrived since the last call.
func (r *MessageFromNATS) MainLogic(context.Context) (bool, error) {
	data, ok := r.pending.Read()
	if !ok {
		return false, nil
	}
	msg, err := r.Generator().Decode(data)
	if err != nil {
		r.Logger().Warn("Skipping undecodable NATS message", "subject", r.subject, "error", err)
		return true, nil
	}
	msg.RecordEntry(r.ComponentName())
	r.queue.Put(msg)
	return true, nil
}

// Cleanup unsubscribes and closes the connection.
func (r *MessageFromNATS) Cleanup(ctx context.Context) error {
	var err error
	if client := r.conn.Client(); client != nil {
		ctx, cancel := context.WithTimeout(ctx, closeTimeout)
		defer cancel()
		err = client.Close(ctx)
		r.conn.Set(nil)
	}
	if r.pending != nil {
		_ = r.pending.Close()
	}
	return err
}

// UsesQueue implements routine.Routine.
func (r *MessageFromNATS) UsesQueue(name string) bool {
	return r.queue != nil && r.queue.Name() == name
}

// Backlog returns the number of received payloads not yet delivered.
func (r *MessageFromNATS) Backlog() int {
	if r.pending == nil {
		return 0
	}
	return r.pending.Size()
}
