// Package storagetest holds the ginkgo specs every storage.Driver must pass.
package storagetest

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
)

var epoch = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

// NewTurn returns a completed turn started offset after a fixed instant.
func NewTurn(id, user, conversationID string, offset time.Duration) *storage.Turn {
	return &storage.Turn{
		ID:             id,
		User:           user,
		ConversationID: conversationID,
		MessageID:      "msg-" + id,
		TaskID:         "task-" + id,
		Query:          "query " + id,
		Answer:         "answer " + id,
		Status:         storage.TurnCompleted,
		Streaming:      true,
		EventCount:     3,
		StartedAt:      epoch.Add(offset),
		CompletedAt:    epoch.Add(offset + 2*time.Second),
	}
}

// DriverSpecs registers the shared driver behaviour. newDriver is called
// before every spec and must return an empty store.
func DriverSpecs(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = nil
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			Expect(driver.Close()).To(Succeed())
		}
	})

	Describe("Put and Get", func() {
		It("stores and retrieves a turn", func() {
			turn := NewTurn("t1", "alice", "c1", 0)
			turn.Error = "upstream hiccup"
			Expect(driver.Put(ctx, turn)).To(Succeed())

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.ID).To(Equal("t1"))
			Expect(got.User).To(Equal("alice"))
			Expect(got.ConversationID).To(Equal("c1"))
			Expect(got.MessageID).To(Equal("msg-t1"))
			Expect(got.TaskID).To(Equal("task-t1"))
			Expect(got.Query).To(Equal("query t1"))
			Expect(got.Answer).To(Equal("answer t1"))
			Expect(got.Status).To(Equal(storage.TurnCompleted))
			Expect(got.Streaming).To(BeTrue())
			Expect(got.EventCount).To(Equal(3))
			Expect(got.Error).To(Equal("upstream hiccup"))
			Expect(got.StartedAt).To(BeTemporally("==", turn.StartedAt))
			Expect(got.Duration()).To(Equal(2 * time.Second))
		})

		It("replaces a turn stored under the same ID", func() {
			turn := NewTurn("t1", "alice", "c1", 0)
			Expect(driver.Put(ctx, turn)).To(Succeed())

			turn.Status = storage.TurnStopped
			turn.Answer = "partial"
			Expect(driver.Put(ctx, turn)).To(Succeed())

			got, err := driver.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Status).To(Equal(storage.TurnStopped))
			Expect(got.Answer).To(Equal("partial"))

			turns, err := driver.ListByConversation(ctx, "alice", "c1")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).To(HaveLen(1))
		})

		It("returns NotFoundError for an unknown ID", func() {
			_, err := driver.Get(ctx, "missing")
			Expect(err).To(MatchError(storage.NotFoundError{ID: "missing"}))
		})

		It("rejects nil turns", func() {
			Expect(driver.Put(ctx, nil)).To(MatchError(storage.ErrNilTurn))
		})
	})

	Describe("ListByConversation", func() {
		It("returns only the user's turns in the conversation, oldest first", func() {
			Expect(driver.Put(ctx, NewTurn("late", "alice", "c1", 2*time.Minute))).To(Succeed())
			Expect(driver.Put(ctx, NewTurn("early", "alice", "c1", time.Minute))).To(Succeed())
			Expect(driver.Put(ctx, NewTurn("other-conv", "alice", "c2", 0))).To(Succeed())
			Expect(driver.Put(ctx, NewTurn("other-user", "bob", "c1", 0))).To(Succeed())

			turns, err := driver.ListByConversation(ctx, "alice", "c1")
			Expect(err).NotTo(HaveOccurred())

			ids := make([]string, 0, len(turns))
			for _, t := range turns {
				ids = append(ids, t.ID)
			}
			Expect(ids).To(Equal([]string{"early", "late"}))
		})

		It("returns an empty slice for an unknown conversation", func() {
			turns, err := driver.ListByConversation(ctx, "alice", "nope")
			Expect(err).NotTo(HaveOccurred())
			Expect(turns).NotTo(BeNil())
			Expect(turns).To(BeEmpty())
		})
	})
}
