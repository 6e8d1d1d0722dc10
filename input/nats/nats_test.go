package nats_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/component"
	pkgerrors "github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/health"
	innats "github.com/ItamarWilf/PipeRT/input/nats"
	"github.com/ItamarWilf/PipeRT/message"
	"github.com/ItamarWilf/PipeRT/natsclient"
	outnats "github.com/ItamarWilf/PipeRT/output/nats"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/testutil"
)

func mockDialer(client *testutil.MockNATSClient) natsclient.Dialer {
	return func(string, ...natsclient.Option) (natsclient.PubSub, error) { return client, nil }
}

func newQueue(t *testing.T, name string) *queue.Queue {
	t.Helper()
	q, err := queue.New(name, 4)
	require.NoError(t, err)
	return q
}

func TestMessageFromNATS_Receive(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewMockNATSClient()
	q := newQueue(t, "in")

	r, err := innats.New("from_nats", q, "frames", "", 2, mockDialer(client))
	require.NoError(t, err)
	r.Attach("Detector", nil, routine.Dependencies{})
	require.NoError(t, r.Setup(ctx))
	assert.Equal(t, 1, client.Subscribers("frames"))

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did)

	gen := message.NewGenerator()
	for _, payload := range []string{"a", "b", "c"} {
		data, err := gen.New(message.RawPayload(payload), "cam0").Encode()
		require.NoError(t, err)
		require.NoError(t, client.Publish("frames", data))
	}
	assert.Equal(t, 2, r.Backlog(), "backlog keeps the newest payloads")

	for _, want := range []string{"b", "c"} {
		did, err := r.MainLogic(ctx)
		require.NoError(t, err)
		require.True(t, did)
		msg, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, message.RawPayload(want), msg.Payload)
		_, entered := msg.Timestamp("Detector", message.SectionEntry)
		assert.True(t, entered)
	}

	require.NoError(t, client.Publish("frames", []byte("garbage")))
	did, err = r.MainLogic(ctx)
	require.NoError(t, err)
	assert.True(t, did)
	assert.True(t, q.Empty(), "undecodable payloads are skipped")

	require.NoError(t, r.Cleanup(ctx))
	assert.True(t, client.IsClosed())
}

func TestMessageFromNATS_ConnectFailure(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewMockNATSClient()
	client.ConnectErr = errors.New("connection refused")

	r, err := innats.New("from_nats", newQueue(t, "in"), "frames", "", 0, mockDialer(client))
	require.NoError(t, err)

	err = r.Setup(ctx)
	require.Error(t, err)
	assert.True(t, pkgerrors.IsTransient(err))
	assert.NoError(t, r.Cleanup(ctx))
}

func TestMessageToNATS_Publish(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewMockNATSClient()
	q := newQueue(t, "out")

	r, err := outnats.New("to_nats", q, "frames", "", mockDialer(client))
	require.NoError(t, err)
	r.Attach("VideoCapture", nil, routine.Dependencies{})
	require.NoError(t, r.Setup(ctx))

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did)

	gen := message.NewGenerator()
	q.Put(gen.New(testutil.TestFrame(2, 2, 5), "cam0"))
	did, err = r.MainLogic(ctx)
	require.NoError(t, err)
	require.True(t, did)

	published := client.GetMessages("frames")
	require.Len(t, published, 1)
	msg, err := gen.Decode(published[0])
	require.NoError(t, err)
	_, exited := msg.Timestamp("VideoCapture", message.SectionExit)
	assert.True(t, exited)
	assert.Equal(t, uint64(5), msg.Payload.(*message.FramePayload).Seq)

	require.NoError(t, r.Cleanup(ctx))

	// Cleanup closed the client; it cannot connect again.
	r2, err := outnats.New("to_nats", q, "frames", "", mockDialer(client))
	require.NoError(t, err)
	require.Error(t, r2.Setup(ctx))
}

func TestNew_RequiresSubject(t *testing.T) {
	_, err := innats.New("from_nats", newQueue(t, "in"), "", "", 0, nil)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingConfig)
	_, err = outnats.New("to_nats", newQueue(t, "out"), "", "", nil)
	assert.ErrorIs(t, err, pkgerrors.ErrMissingConfig)
}

// TestNATSComponents wires a producer and a consumer component through the
// mock client and runs them.
func TestNATSComponents(t *testing.T) {
	client := testutil.NewMockNATSClient()
	routines := routine.NewRegistry()
	require.NoError(t, innats.Register(routines, "", mockDialer(client)))
	require.NoError(t, outnats.Register(routines, "", mockDialer(client)))

	deps := component.Dependencies{Routines: routines}
	consumer := component.New("Consumer", deps)
	require.True(t, consumer.CreateQueue("in").Succeeded)
	res := consumer.AddRoutine(innats.TypeName, "read", map[string]any{"queue": "in", "subject": "pipeline.frames"})
	require.True(t, res.Succeeded, res.Message)

	producer := component.New("Producer", deps)
	require.True(t, producer.CreateQueue("out").Succeeded)
	res = producer.AddRoutine(outnats.TypeName, "publish", map[string]any{"queue": "out", "subject": "pipeline.frames"})
	require.True(t, res.Succeeded, res.Message)

	require.True(t, consumer.Run().Succeeded)
	t.Cleanup(func() { consumer.Stop() })
	require.True(t, producer.Run().Succeeded)
	t.Cleanup(func() { producer.Stop() })

	out, _ := producer.Queue("out")
	in, _ := consumer.Queue("in")
	out.Put(message.NewGenerator().New(message.RawPayload("hello"), "cam0"))

	var got *message.Message
	require.Eventually(t, func() bool {
		got, _ = in.Get()
		return got != nil
	}, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, message.RawPayload("hello"), got.Payload)
}

func TestMessageToNATS_HealthFollowsConnection(t *testing.T) {
	ctx := context.Background()
	client := testutil.NewMockNATSClient()

	r, err := outnats.New("to_nats", newQueue(t, "out"), "frames", "", mockDialer(client))
	require.NoError(t, err)
	ok, _ := r.Healthy()
	assert.True(t, ok, "no client yet")

	require.NoError(t, r.Setup(ctx))
	ok, reason := r.Healthy()
	assert.True(t, ok)
	assert.Empty(t, reason)

	client.Disconnect()
	ok, reason = r.Healthy()
	assert.False(t, ok)
	assert.Contains(t, reason, "disconnected")
	assert.Contains(t, reason, "1 failures")

	require.NoError(t, r.Cleanup(ctx))
	ok, _ = r.Healthy()
	assert.True(t, ok, "a closed routine holds no connection")
}

func TestNATSComponent_LostConnectionDegradesHealth(t *testing.T) {
	client := testutil.NewMockNATSClient()
	routines := routine.NewRegistry()
	require.NoError(t, innats.Register(routines, "", mockDialer(client)))

	c := component.New("Consumer", component.Dependencies{Routines: routines})
	require.True(t, c.CreateQueue("in").Succeeded)
	res := c.AddRoutine(innats.TypeName, "read", map[string]any{"queue": "in", "subject": "pipeline.frames"})
	require.True(t, res.Succeeded, res.Message)
	require.True(t, c.Run().Succeeded)
	t.Cleanup(func() { c.Stop() })

	assert.Equal(t, health.LevelHealthy, health.FromComponentStatus(c.Status()).Status)

	client.Disconnect()
	st := c.Status()
	require.Len(t, st.Routines, 1)
	assert.True(t, st.Routines[0].Running)
	assert.Contains(t, st.Routines[0].Unhealthy, "disconnected")

	h := health.FromComponentStatus(st)
	assert.Equal(t, health.LevelDegraded, h.Status)
	assert.Contains(t, h.Message, "lost their connection")
	require.Len(t, h.SubStatuses, 1)
	assert.Equal(t, health.LevelDegraded, h.SubStatuses[0].Status)
}
