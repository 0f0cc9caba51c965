package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/eventstream/nop"
	"github.com/papercomputeco/relay/pkg/storage"
)

var _ = Describe("Publisher", func() {
	It("returns ErrNilTurnEvent for nil events", func() {
		p := nop.NewPublisher()
		err := p.PublishTurn(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilTurnEvent))
		Expect(p.Events()).To(BeEmpty())
	})

	It("records non-nil events", func() {
		p := nop.NewPublisher()
		ev := &eventstream.TurnCompletedEvent{EventID: "e1"}
		Expect(p.PublishTurn(context.Background(), ev)).To(Succeed())
		Expect(p.Events()).To(ConsistOf(ev))
	})

	It("refuses events after close but keeps the record", func() {
		p := nop.NewPublisher()
		ev := &eventstream.TurnCompletedEvent{EventID: "e1", Turn: storage.Turn{ConversationID: "c1"}}
		Expect(p.PublishTurn(context.Background(), ev)).To(Succeed())

		Expect(p.Close()).To(Succeed())
		Expect(p.PublishTurn(context.Background(), ev)).To(MatchError(eventstream.ErrPublisherClosed))
		Expect(p.Events()).To(HaveLen(1))
		Expect(p.Events()[0].Turn.ConversationID).To(Equal("c1"))
	})
})
