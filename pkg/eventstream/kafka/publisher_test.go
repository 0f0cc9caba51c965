package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
)

type fakeWriter struct {
	msgs     []kafkago.Message
	err      error
	deadline bool
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	_, f.deadline = ctx.Deadline()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

var _ = Describe("Publisher", func() {
	var (
		w     *fakeWriter
		p     *Publisher
		event *eventstream.TurnCompletedEvent
	)

	BeforeEach(func() {
		w = &fakeWriter{}
		p = newPublisher(w, 0, logger.Nop())

		now := time.Now()
		event = eventstream.NewTurnCompletedEvent(&storage.Turn{
			ID:             "turn-1",
			ConversationID: "conv-1",
			StartedAt:      now,
			CompletedAt:    now,
		}, eventstream.EventSource{Service: "relay", Provider: "dify"}, "/rpc/chatMessages")
	})

	It("writes one JSON message keyed by conversation", func() {
		Expect(p.PublishTurn(context.Background(), event)).To(Succeed())
		Expect(w.msgs).To(HaveLen(1))
		Expect(w.deadline).To(BeTrue())

		msg := w.msgs[0]
		Expect(string(msg.Key)).To(Equal("conv-1"))
		Expect(msg.Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte("relay.turn.completed")}))

		var decoded eventstream.TurnCompletedEvent
		Expect(json.Unmarshal(msg.Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Turn.ID).To(Equal("turn-1"))
	})

	It("rejects nil events", func() {
		Expect(p.PublishTurn(context.Background(), nil)).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(w.msgs).To(BeEmpty())
	})

	It("wraps writer failures", func() {
		boom := errors.New("broker down")
		w.err = boom
		err := p.PublishTurn(context.Background(), event)
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring(event.EventID))
	})

	It("closes the writer once and refuses later events", func() {
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeTrue())

		w.closed = false
		Expect(p.Close()).To(Succeed())
		Expect(w.closed).To(BeFalse())

		Expect(p.PublishTurn(context.Background(), event)).To(MatchError(eventstream.ErrPublisherClosed))
		Expect(w.msgs).To(BeEmpty())
	})

	It("validates its config", func() {
		_, err := NewPublisher(Config{Topic: "t"}, logger.Nop())
		Expect(err).To(HaveOccurred())

		_, err = NewPublisher(Config{Brokers: []string{"localhost:9092"}}, logger.Nop())
		Expect(err).To(HaveOccurred())

		pub, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "relay.turns"}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())
		Expect(pub.Close()).To(Succeed())
	})
})
