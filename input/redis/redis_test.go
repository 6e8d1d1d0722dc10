package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/component"
	inredis "github.com/ItamarWilf/PipeRT/input/redis"
	"github.com/ItamarWilf/PipeRT/message"
	outredis "github.com/ItamarWilf/PipeRT/output/redis"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/service"
	"github.com/ItamarWilf/PipeRT/testutil"
)

func publish(t *testing.T, client *goredis.Client, key string, msg *message.Message) {
	t.Helper()
	data, err := msg.Encode()
	require.NoError(t, err)
	require.NoError(t, client.XAdd(context.Background(), &goredis.XAddArgs{
		Stream: key,
		Values: map[string]any{inredis.Field: data},
	}).Err())
}

func newSource(t *testing.T, addr string, mostRecent bool) (*inredis.MessageFromRedis, *queue.Queue) {
	t.Helper()
	q, err := queue.New("in", 8)
	require.NoError(t, err)
	r, err := inredis.New("from_redis", q, inredis.Config{
		InKey:      "camera:0",
		URL:        "redis://" + addr,
		MostRecent: mostRecent,
		Retry:      retry.Config{MaxAttempts: 1},
	})
	require.NoError(t, err)
	r.Attach("Detector", nil, routine.Dependencies{})
	return r, q
}

func TestMessageFromRedis_ReadsNewEntriesInOrder(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	gen := message.NewGenerator()
	publish(t, client, "camera:0", gen.New(message.RawPayload("old"), "cam0"))

	r, q := newSource(t, mr.Addr(), false)
	require.NoError(t, r.Setup(ctx))
	t.Cleanup(func() { _ = r.Cleanup(ctx) })

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did, "entries older than Setup are skipped")

	publish(t, client, "camera:0", gen.New(message.RawPayload("a"), "cam0"))
	publish(t, client, "camera:0", gen.New(message.RawPayload("b"), "cam0"))

	for _, want := range []string{"a", "b"} {
		did, err := r.MainLogic(ctx)
		require.NoError(t, err)
		require.True(t, did)
		msg, ok := q.Get()
		require.True(t, ok)
		assert.Equal(t, message.RawPayload(want), msg.Payload)
		_, entered := msg.Timestamp("Detector", message.SectionEntry)
		assert.True(t, entered)
	}

	did, err = r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did)
}

func TestMessageFromRedis_MostRecent(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	r, q := newSource(t, mr.Addr(), true)
	require.NoError(t, r.Setup(ctx))
	t.Cleanup(func() { _ = r.Cleanup(ctx) })

	gen := message.NewGenerator()
	publish(t, client, "camera:0", gen.New(message.RawPayload("a"), "cam0"))
	publish(t, client, "camera:0", gen.New(message.RawPayload("b"), "cam0"))

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	require.True(t, did)
	msg, _ := q.Get()
	assert.Equal(t, message.RawPayload("b"), msg.Payload)

	did, err = r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did, "the newest entry is delivered once")
}

func TestMessageFromRedis_SkipsMalformedEntries(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	r, q := newSource(t, mr.Addr(), false)
	require.NoError(t, r.Setup(ctx))
	t.Cleanup(func() { _ = r.Cleanup(ctx) })

	require.NoError(t, client.XAdd(ctx, &goredis.XAddArgs{
		Stream: "camera:0",
		Values: map[string]any{inredis.Field: "not json"},
	}).Err())

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	assert.True(t, did)
	assert.True(t, q.Empty())
}

// TestRedisPipeline runs a producer and a consumer component connected through
// a Redis stream, built from a declarative topology.
func TestRedisPipeline(t *testing.T) {
	mr := miniredis.RunT(t)
	url := "redis://" + mr.Addr()

	routines := testutil.NewRoutineRegistry()
	require.NoError(t, inredis.Register(routines, url))
	require.NoError(t, outredis.Register(routines, url))

	gen := message.NewGenerator(message.WithTerminals("Consumer"))
	manager := service.NewPipelineManager(nil, component.Dependencies{Routines: routines, Generator: gen})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = manager.Shutdown(ctx)
	})

	resp := manager.SetupComponents(map[string]any{
		"components": map[string]any{
			"Producer": map[string]any{
				"queues": []any{"out"},
				"routines": map[string]any{
					"publish": map[string]any{"routine_type_name": outredis.TypeName, "queue": "out", "out_key": "frames"},
				},
			},
			"Consumer": map[string]any{
				"queues": []any{"in"},
				"routines": map[string]any{
					"read": map[string]any{"routine_type_name": inredis.TypeName, "queue": "in", "in_key": "frames"},
				},
			},
		},
	})
	require.True(t, resp.Succeeded(), "%+v", resp)
	require.NoError(t, manager.RunAll())

	producer, _ := manager.Component("Producer")
	out, _ := producer.Queue("out")
	consumer, _ := manager.Component("Consumer")
	in, _ := consumer.Queue("in")

	var received *message.Message
	require.Eventually(t, func() bool {
		msg := gen.New(testutil.TestFrame(2, 2, 1), "cam0")
		msg.RecordEntry("Producer")
		out.Put(msg)
		received, _ = in.Get()
		return received != nil
	}, 5*time.Second, 20*time.Millisecond)

	_, ok := received.Timestamp("Producer", message.SectionExit)
	assert.True(t, ok)
	_, ok = received.Timestamp("Consumer", message.SectionEntry)
	assert.True(t, ok)
}
