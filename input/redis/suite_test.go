package redis_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	inredis "github.com/ItamarWilf/PipeRT/input/redis"
	"github.com/ItamarWilf/PipeRT/message"
	outredis "github.com/ItamarWilf/PipeRT/output/redis"
	"github.com/ItamarWilf/PipeRT/pkg/retry"
	"github.com/ItamarWilf/PipeRT/queue"
	"github.com/ItamarWilf/PipeRT/routine"
	"github.com/ItamarWilf/PipeRT/testutil"
)

// StreamSuite links a MessageToRedis producer with a MessageFromRedis
// consumer through a fresh in-process Redis per test.
type StreamSuite struct {
	suite.Suite

	ctx      context.Context
	mr       *miniredis.Miniredis
	gen      *message.Generator
	out, in  *queue.Queue
	producer *outredis.MessageToRedis
}

// SetupTest starts Redis and the producer side.
func (s *StreamSuite) SetupTest() {
	s.ctx = context.Background()
	s.mr = miniredis.RunT(s.T())
	s.gen = message.NewGenerator(message.WithTerminals("Consumer"))

	var err error
	s.out, err = queue.New("out", 8)
	s.Require().NoError(err)
	s.in, err = queue.New("in", 8)
	s.Require().NoError(err)

	s.producer, err = outredis.New("to_redis", s.out, outredis.Config{
		OutKey: "frames",
		URL:    s.url(),
		MaxLen: 16,
		Retry:  retry.Config{MaxAttempts: 1},
	})
	s.Require().NoError(err)
	s.producer.Attach("Producer", nil, routine.Dependencies{Generator: s.gen})
	s.Require().NoError(s.producer.Setup(s.ctx))
	s.T().Cleanup(func() { _ = s.producer.Cleanup(s.ctx) })
}

func (s *StreamSuite) url() string { return "redis://" + s.mr.Addr() }

func (s *StreamSuite) consumer(mostRecent bool) *inredis.MessageFromRedis {
	c, err := inredis.New("from_redis", s.in, inredis.Config{
		InKey:      "frames",
		URL:        s.url(),
		MostRecent: mostRecent,
		Retry:      retry.Config{MaxAttempts: 1},
	})
	s.Require().NoError(err)
	c.Attach("Consumer", nil, routine.Dependencies{Generator: s.gen})
	s.Require().NoError(c.Setup(s.ctx))
	s.T().Cleanup(func() { _ = c.Cleanup(s.ctx) })
	return c
}

func (s *StreamSuite) send(seq uint64) *message.Message {
	msg := s.gen.New(testutil.TestFrame(4, 2, seq), "cam0")
	msg.RecordEntry("Producer")
	s.out.Put(msg)
	did, err := s.producer.MainLogic(s.ctx)
	s.Require().NoError(err)
	s.Require().True(did)
	return msg
}

func (s *StreamSuite) TestFrameSurvivesTheStream() {
	c := s.consumer(false)
	sent := s.send(1)

	did, err := c.MainLogic(s.ctx)
	s.Require().NoError(err)
	s.Require().True(did)

	got, ok := s.in.Get()
	s.Require().True(ok)
	s.Equal(sent.ID, got.ID)
	s.Equal(sent.Payload, got.Payload)

	_, ok = got.Timestamp("Producer", message.SectionExit)
	s.True(ok, "producer exit travels with the message")
	_, ok = got.Timestamp("Consumer", message.SectionEntry)
	s.True(ok)
}

func (s *StreamSuite) TestInOrderReadDeliversEveryEntry() {
	c := s.consumer(false)
	for seq := uint64(1); seq <= 3; seq++ {
		s.send(seq)
	}

	for seq := uint64(1); seq <= 3; seq++ {
		did, err := c.MainLogic(s.ctx)
		s.Require().NoError(err)
		s.Require().True(did)
		got, ok := s.in.Get()
		s.Require().True(ok)
		s.Equal(seq, got.Payload.(*message.FramePayload).Seq)
	}

	did, err := c.MainLogic(s.ctx)
	s.NoError(err)
	s.False(did, "stream drained")
}

func (s *StreamSuite) TestMostRecentSkipsBacklog() {
	c := s.consumer(true)
	for seq := uint64(1); seq <= 3; seq++ {
		s.send(seq)
	}

	did, err := c.MainLogic(s.ctx)
	s.Require().NoError(err)
	s.Require().True(did)
	got, ok := s.in.Get()
	s.Require().True(ok)
	s.Equal(uint64(3), got.Payload.(*message.FramePayload).Seq)

	did, err = c.MainLogic(s.ctx)
	s.NoError(err)
	s.False(did, "the newest entry is delivered once")
}

func TestStreamSuite(t *testing.T) {
	suite.Run(t, new(StreamSuite))
}
