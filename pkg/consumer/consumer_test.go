package consumer_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/consumer"
	"github.com/papercomputeco/relay/pkg/dify"
	"github.com/papercomputeco/relay/pkg/logger"
)

// sliceSource replays events and then either io.EOF or err.
type sliceSource struct {
	events []dify.Event
	err    error
	closes int
}

func (s *sliceSource) Next() (dify.Event, error) {
	if len(s.events) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	ev := s.events[0]
	s.events = s.events[1:]
	return ev, nil
}

func (s *sliceSource) Close() error {
	s.closes++
	return nil
}

func msg(answer string) *dify.Message {
	return &dify.Message{
		Envelope: dify.Envelope{Event: dify.EventMessage, TaskID: "t1", MessageID: "m1", ConversationID: "c1", CreatedAt: 1},
		Answer:   answer,
	}
}

// stepClock advances one second per call.
func stepClock() func() time.Time {
	t := time.Unix(1700000000, 0)
	return func() time.Time {
		now := t
		t = t.Add(time.Second)
		return now
	}
}

var _ = Describe("Consumer", func() {
	It("concatenates message and agent_message answers in order", func() {
		c := consumer.New()
		Expect(c.Handle(msg("Hel"))).To(Succeed())
		Expect(c.Handle(&dify.AgentMessage{Envelope: dify.Envelope{Event: dify.EventAgentMessage, TaskID: "t1", CreatedAt: 1}, Answer: "lo"})).To(Succeed())
		Expect(c.Handle(&dify.Ping{Event: dify.EventPing})).To(Succeed())
		Expect(c.Handle(msg("!"))).To(Succeed())

		Expect(c.Answer()).To(Equal("Hello!"))
	})

	It("replaces the answer on message_replace", func() {
		c := consumer.New()
		Expect(c.Handle(msg("something rude"))).To(Succeed())
		Expect(c.Handle(&dify.MessageReplace{Envelope: dify.Envelope{Event: dify.EventMessageReplace, TaskID: "t1", CreatedAt: 1}, Answer: "[redacted]"})).To(Succeed())

		Expect(c.Answer()).To(Equal("[redacted]"))
	})

	It("records the conversation id from message_end", func() {
		c := consumer.New(consumer.WithConversationID("old"))
		Expect(c.ConversationID()).To(Equal("old"))

		Expect(c.Handle(&dify.MessageEnd{Envelope: dify.Envelope{Event: dify.EventMessageEnd, TaskID: "t9", MessageID: "m9", ConversationID: "new", CreatedAt: 1}})).To(Succeed())
		Expect(c.ConversationID()).To(Equal("new"))
		Expect(c.TaskID()).To(Equal("t9"))
		Expect(c.MessageID()).To(Equal("m9"))
	})

	It("writes each handled event to the configured logger", func() {
		var buf bytes.Buffer
		c := consumer.New(consumer.WithLogger(logger.New(
			logger.WithDebug(true),
			logger.WithJSON(true),
			logger.WithWriter(&buf),
		)))

		Expect(c.Handle(&dify.Ping{Event: dify.EventPing})).To(Succeed())
		Expect(buf.String()).To(ContainSubstring(`"type":"ping"`))
	})

	It("logs every event with its elapsed time", func() {
		var seen []consumer.Entry
		c := consumer.New(
			consumer.WithClock(stepClock()),
			consumer.WithOnEvent(func(e consumer.Entry) { seen = append(seen, e) }),
		)
		Expect(c.Handle(msg("a"))).To(Succeed())
		Expect(c.Handle(&dify.Ping{Event: dify.EventPing})).To(Succeed())

		log := c.Log()
		Expect(log).To(HaveLen(2))
		Expect(log[0].Elapsed).To(Equal(time.Second))
		Expect(log[1].Elapsed).To(Equal(2 * time.Second))
		Expect(log[1].Event.Type()).To(Equal(dify.EventPing))
		Expect(seen).To(Equal(log))
	})

	It("turns error events into StreamError", func() {
		c := consumer.New()
		err := c.Handle(&dify.ErrorEvent{Event: dify.EventError, TaskID: "t2", Status: 400, Code: "provider_quota_exceeded", Message: "quota"})

		var streamErr *consumer.StreamError
		Expect(errors.As(err, &streamErr)).To(BeTrue())
		Expect(streamErr.Code).To(Equal("provider_quota_exceeded"))
		Expect(err.Error()).To(Equal("stream error (provider_quota_exceeded): quota"))
		Expect(c.TaskID()).To(Equal("t2"))
		Expect(consumer.IsAbort(err)).To(BeFalse())
	})

	Describe("Consume", func() {
		It("drains the source and closes it", func() {
			src := &sliceSource{events: []dify.Event{msg("Hi"), msg(" there")}}
			c := consumer.New()

			Expect(c.Consume(src)).To(Succeed())
			Expect(c.Answer()).To(Equal("Hi there"))
			Expect(src.closes).To(Equal(1))
		})

		It("stops at the first error event", func() {
			src := &sliceSource{events: []dify.Event{
				msg("partial"),
				&dify.ErrorEvent{Event: dify.EventError, Message: "boom"},
				msg("never"),
			}}
			c := consumer.New()

			err := c.Consume(src)
			Expect(err).To(MatchError("stream error: boom"))
			Expect(c.Answer()).To(Equal("partial"))
			Expect(src.closes).To(Equal(1))
		})

		It("returns stream failures", func() {
			boom := errors.New("connection reset")
			src := &sliceSource{events: []dify.Event{msg("a")}, err: boom}

			err := consumer.New().Consume(src)
			Expect(err).To(MatchError(boom))
			Expect(consumer.IsAbort(err)).To(BeFalse())
			Expect(src.closes).To(Equal(1))
		})
	})

	DescribeTable("IsAbort",
		func(err error, want bool) {
			Expect(consumer.IsAbort(err)).To(Equal(want))
		},
		Entry("nil", nil, false),
		Entry("context canceled", context.Canceled, true),
		Entry("wrapped cancel", fmt.Errorf("dify stream aborted: %w", context.Canceled), true),
		Entry("closed stream", dify.ErrStreamClosed, true),
		Entry("idle timeout", fmt.Errorf("dify stream aborted: %w", dify.ErrIdleTimeout), false),
		Entry("api error", &dify.APIError{StatusCode: 502, Body: "x"}, false),
	)

	It("accumulates the answer of a real stream end to end", func() {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			_, _ = io.WriteString(w, `data: {"event":"message","task_id":"t1","id":"m1","message_id":"m1","conversation_id":"c1","answer":"Hi","created_at":1700000000}`+"\n\n")
		}))
		defer server.Close()

		client := dify.New(dify.Config{BaseURL: server.URL, APIKey: "k"})
		stream, err := client.ChatMessagesStream(context.Background(), dify.ChatRequest{Query: "hello", User: "u1"})
		Expect(err).NotTo(HaveOccurred())

		c := consumer.New()
		Expect(c.Consume(stream)).To(Succeed())

		Expect(c.Log()).To(HaveLen(1))
		m, ok := c.Log()[0].Event.(*dify.Message)
		Expect(ok).To(BeTrue())
		Expect(m.TaskID).To(Equal("t1"))
		Expect(m.ID).To(Equal("m1"))
		Expect(m.ConversationID).To(Equal("c1"))
		Expect(m.CreatedAt).To(Equal(int64(1700000000)))
		Expect(c.Answer()).To(Equal("Hi"))
	})
})
