package nats

import (
	"context"
	"time"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/natsclient"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
)

// TypeName is the routine type registered by Register.
const TypeName = "MessageToNATS"

// DefaultURL is used when no url is configured.
const DefaultURL = "nats://localhost:4222"

// closeTimeout bounds the drain in Cleanup.
const closeTimeout = 5 * time.Second

// MessageToNATS takes messages from its queue, records their exit from the
// owning component and publishes them on a subject.
type MessageToNATS struct {
	*routine.Base

	queue   *queue.Queue
	subject string
	url     string
	dial    natsclient.Dialer
	conn    natsclient.Holder
}

var _ routine.HealthReporter = (*MessageToNATS)(nil)

// New creates a detached MessageToNATS draining q. A nil dial selects
// natsclient.DefaultDialer.
func New(name string, q *queue.Queue, subject, url string, dial natsclient.Dialer) (*MessageToNATS, error) {
	if subject == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "MessageToNATS", "New", "subject")
	}
	if url == "" {
		url = DefaultURL
	}
	if dial == nil {
		dial = natsclient.DefaultDialer
	}
	return &MessageToNATS{
		Base:    routine.NewBase(name),
		queue:   q,
		subject: subject,
		url:     url,
		dial:    dial,
	}, nil
}

// Setup connects to the server.
func (r *MessageToNATS) Setup(ctx context.Context) error {
	client, err := r.dial(r.url,
		natsclient.WithLogger(r.Logger()),
		natsclient.WithName(r.ComponentName()+"."+r.Name()),
		natsclient.WithHealthChangeCallback(r.onHealthChange),
	)
	if err != nil {
		return errors.WrapInvalid(err, "MessageToNATS", "Setup", "create client")
	}
	r.conn.Set(client)
	if err := client.Connect(ctx); err != nil {
		return errors.WrapTransient(err, "MessageToNATS", "Setup", "connect to "+r.url)
	}
	r.Logger().Info("Publishing to NATS", "subject", r.subject)
	return nil
}

func (r *MessageToNATS) onHealthChange(healthy bool) {
	if healthy {
		r.Logger().Info("NATS publisher connected", "subject", r.subject)
		return
	}
	r.Logger().Warn("NATS publisher disconnected, messages will be dropped", "subject", r.subject)
}

// Healthy reports the state of the NATS connection.
func (r *MessageToNATS) Healthy() (bool, string) { return r.conn.Healthy() }

// MainLogic publishes one message. It reports no work when the queue is empty.
func (r *MessageToNATS) MainLogic(context.Context) (bool, error) {
	msg, ok := r.queue.Get()
	if !ok {
		return false, nil
	}
	msg.RecordExit(r.ComponentName())

	data, err := msg.Encode()
	if err != nil {
		return false, err
	}
	if err := r.conn.Client().Publish(r.subject, data); err != nil {
		return false, errors.WrapTransient(err, "MessageToNATS", "MainLogic", "publish "+r.subject)
	}
	return true, nil
}

// Cleanup closes the connection.
func (r *MessageToNATS) Cleanup(ctx context.Context) error {
	client := r.conn.Client()
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, closeTimeout)
	defer cancel()
	err := client.Close(ctx)
	r.conn.Set(nil)
	return err
}

// UsesQueue implements routine.Routine.
func (r *MessageToNATS) UsesQueue(name string) bool {
	return r.queue != nil && r.queue.Name() == name
}
