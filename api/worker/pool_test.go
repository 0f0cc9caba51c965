package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/eventstream"
	"github.com/papercomputeco/relay/pkg/eventstream/nop"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
)

func testTurn(id string) *storage.Turn {
	now := time.Now().UTC()
	return &storage.Turn{
		ID:             id,
		User:           "alice",
		ConversationID: "conv-1",
		Query:          "hello",
		Answer:         "hi",
		Status:         storage.TurnCompleted,
		StartedAt:      now,
		CompletedAt:    now.Add(time.Second),
	}
}

// failingDriver fails every Put.
type failingDriver struct {
	*inmemory.Driver
}

func (failingDriver) Put(context.Context, *storage.Turn) error {
	return errors.New("disk full")
}

// blockingDriver holds every Put until release is closed.
type blockingDriver struct {
	*inmemory.Driver
	release chan struct{}
}

func (d blockingDriver) Put(ctx context.Context, t *storage.Turn) error {
	<-d.release
	return d.Driver.Put(ctx, t)
}

var _ = Describe("Worker Pool", func() {
	var (
		driver    *inmemory.Driver
		publisher *nop.Publisher
		ctx       context.Context
	)

	BeforeEach(func() {
		driver = inmemory.NewDriver()
		publisher = nop.NewPublisher()
		ctx = context.Background()
	})

	It("requires a storage driver", func() {
		_, err := NewPool(&Config{})
		Expect(err).To(HaveOccurred())
	})

	It("stores and publishes enqueued turns", func() {
		wp, err := NewPool(&Config{
			Driver:    driver,
			Publisher: publisher,
			Source:    eventstream.EventSource{Service: "relay", Provider: "dify"},
			Logger:    logger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		Expect(wp.Enqueue(Job{Turn: testTurn("t1"), Path: "/rpc/chatMessagesStream"})).To(BeTrue())
		Expect(wp.Enqueue(Job{Turn: testTurn("t2"), Path: "/rpc/chatMessages"})).To(BeTrue())

		// Drain the worker pool to ensure async storage completes
		wp.Close()

		turns, err := driver.ListByConversation(ctx, "alice", "conv-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(turns).To(HaveLen(2))

		events := publisher.Events()
		Expect(events).To(HaveLen(2))
		paths := []string{events[0].RequestMeta.Path, events[1].RequestMeta.Path}
		Expect(paths).To(ConsistOf("/rpc/chatMessagesStream", "/rpc/chatMessages"))
		Expect(events[0].Source.Provider).To(Equal("dify"))
	})

	It("stores without publishing when no publisher is configured", func() {
		wp, err := NewPool(&Config{Driver: driver})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(Job{Turn: testTurn("t1")})
		wp.Close()

		Expect(driver.Count()).To(Equal(1))
	})

	It("does not publish turns that failed to store", func() {
		var (
			mu      sync.Mutex
			results []error
		)
		wp, err := NewPool(&Config{
			Driver:    failingDriver{inmemory.NewDriver()},
			Publisher: publisher,
			OnDone: func(_ Job, err error) {
				mu.Lock()
				defer mu.Unlock()
				results = append(results, err)
			},
		})
		Expect(err).NotTo(HaveOccurred())

		wp.Enqueue(Job{Turn: testTurn("t1")})
		wp.Close()

		Expect(publisher.Events()).To(BeEmpty())
		Expect(results).To(HaveLen(1))
		Expect(results[0]).To(MatchError(ContainSubstring("disk full")))
	})

	It("drops jobs instead of blocking when the queue is full", func() {
		release := make(chan struct{})
		wp, err := NewPool(&Config{
			Driver:     blockingDriver{Driver: driver, release: release},
			NumWorkers: 1,
			QueueSize:  1,
		})
		Expect(err).NotTo(HaveOccurred())

		// The single worker picks up t1 and blocks; t2 fills the queue.
		Expect(wp.Enqueue(Job{Turn: testTurn("t1")})).To(BeTrue())
		Eventually(func() bool {
			return wp.Enqueue(Job{Turn: testTurn("t2")})
		}).Should(BeTrue())
		Expect(wp.Enqueue(Job{Turn: testTurn("t3")})).To(BeFalse())

		close(release)
		wp.Close()
		Expect(driver.Count()).To(Equal(2))
	})

	It("drops jobs enqueued after close", func() {
		wp, err := NewPool(&Config{Driver: driver, Logger: logger.Nop()})
		Expect(err).NotTo(HaveOccurred())

		wp.Close()
		wp.Close()

		Expect(wp.Enqueue(Job{Turn: testTurn("late")})).To(BeFalse())
		Expect(driver.Count()).To(BeZero())
	})
})
