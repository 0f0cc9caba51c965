package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/storage"
)

var _ = Describe("Event", func() {
	var turn *storage.Turn

	BeforeEach(func() {
		started := time.Unix(1735689600, 0).UTC()
		turn = &storage.Turn{
			ID:             "turn-1",
			User:           "alice",
			ConversationID: "c1",
			Query:          "hello",
			Answer:         "hi",
			Status:         storage.TurnCompleted,
			Streaming:      true,
			StartedAt:      started,
			CompletedAt:    started.Add(1500 * time.Millisecond),
		}
	})

	It("builds a v1 turn completed event", func() {
		ev := eventstream.NewTurnCompletedEvent(turn, eventstream.EventSource{Service: "relay", Provider: "dify"}, "/rpc/chatMessagesStream")

		Expect(ev.SchemaVersion).To(Equal(eventstream.SchemaVersionV1))
		Expect(ev.EventType).To(Equal("relay.turn.completed"))
		Expect(ev.EventID).NotTo(BeEmpty())
		Expect(ev.EmittedAt).To(BeTemporally("~", time.Now(), time.Minute))
		Expect(ev.RequestMeta.DurationMs).To(Equal(int64(1500)))
		Expect(ev.RequestMeta.Streaming).To(BeTrue())
		Expect(ev.Turn.ID).To(Equal("turn-1"))

		other := eventstream.NewTurnCompletedEvent(turn, eventstream.EventSource{}, "")
		Expect(other.EventID).NotTo(Equal(ev.EventID))
	})

	It("marshals with expected top-level keys", func() {
		ev := eventstream.NewTurnCompletedEvent(turn, eventstream.EventSource{Service: "relay", Provider: "dify"}, "/rpc/chatMessages")

		payload, err := json.Marshal(ev)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())
		Expect(got).To(HaveKey("schema_version"))
		Expect(got).To(HaveKey("event_type"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got).To(HaveKey("source"))
		Expect(got).To(HaveKey("request_meta"))
		Expect(got).To(HaveKeyWithValue("turn", HaveKeyWithValue("conversation_id", "c1")))
	})
})
