package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ItamarWilf/PipeRT/errors"
	"github.com/ItamarWilf/PipeRT/message"
	outredis "github.com/ItamarWilf/PipeRT/output/redis"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/testutil"
)

func newSink(t *testing.T, url string, maxLen int64) (*outredis.MessageToRedis, *queue.Queue) {
	t.Helper()
	q, err := queue.New("out", 8)
	require.NoError(t, err)
	r, err := outredis.New("to_redis", q, outredis.Config{
		OutKey: "camera:0",
		URL:    url,
		MaxLen: maxLen,
		Retry:  retry.Config{MaxAttempts: 1},
	})
	require.NoError(t, err)
	r.Attach("VideoCapture", nil, routine.Dependencies{})
	return r, q
}

func TestMessageToRedis_Publish(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	r, q := newSink(t, "redis://"+mr.Addr(), 2)

	require.NoError(t, r.Setup(ctx))
	t.Cleanup(func() { _ = r.Cleanup(ctx) })

	did, err := r.MainLogic(ctx)
	require.NoError(t, err)
	assert.False(t, did, "empty queue")

	gen := message.NewGenerator()
	for i := range 3 {
		msg := gen.New(testutil.TestFrame(2, 2, uint64(i)), "cam0")
		msg.RecordEntry("VideoCapture")
		q.Put(msg)
		did, err := r.MainLogic(ctx)
		require.NoError(t, err)
		require.True(t, did)
	}

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	entries, err := client.XRange(ctx, "camera:0", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 2, "stream is capped at maxlen")

	raw, ok := entries[1].Values[outredis.Field].(string)
	require.True(t, ok)
	decoded, err := gen.Decode([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, "cam0_2", decoded.ID)
	_, exited := decoded.Timestamp("VideoCapture", message.SectionExit)
	assert.True(t, exited, "exit is recorded before publishing")
}

func TestMessageToRedis_SetupFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("unreachable", func(t *testing.T) {
		mr := miniredis.RunT(t)
		addr := mr.Addr()
		mr.Close()

		r, _ := newSink(t, "redis://"+addr, 0)
		err := r.Setup(ctx)
		require.Error(t, err)
		assert.True(t, errors.IsTransient(err))
		assert.NoError(t, r.Cleanup(ctx))
	})

	t.Run("bad url", func(t *testing.T) {
		r, _ := newSink(t, "http://not-redis", 0)
		err := r.Setup(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	})
}

func TestMessageToRedis_PublishFailure(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	r, q := newSink(t, "redis://"+mr.Addr(), 0)
	require.NoError(t, r.Setup(ctx))
	t.Cleanup(func() { _ = r.Cleanup(ctx) })

	mr.SetError("READONLY")
	q.Put(message.NewGenerator().New(message.RawPayload("x"), "cam0"))

	did, err := r.MainLogic(ctx)
	assert.False(t, did)
	require.Error(t, err)
	assert.True(t, errors.IsTransient(err))
}

func TestNew_RequiresKey(t *testing.T) {
	q, err := queue.New("out", 1)
	require.NoError(t, err)
	_, err = outredis.New("to_redis", q, outredis.Config{})
	assert.ErrorIs(t, err, errors.ErrMissingConfig)
}

func TestRegister(t *testing.T) {
	routines := routine.NewRegistry()
	require.NoError(t, outredis.Register(routines, "redis://cache:6379/2"))

	reg, err := routines.Lookup(outredis.TypeName)
	require.NoError(t, err)
	for _, p := range reg.Parameters {
		if p.Name == "url" {
			assert.Equal(t, "redis://cache:6379/2", p.Default)
		}
	}

	params, err := routines.ConstructorParameters(outredis.TypeName)
	require.NoError(t, err)
	assert.Equal(t, routine.ParamQueue, params["queue"])
	assert.Equal(t, routine.ParamInt, params["maxlen"])
}
