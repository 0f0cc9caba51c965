package inmemory_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/storagetest"
)

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		return inmemory.NewDriver()
	})

	It("hands out copies so callers cannot mutate stored turns", func() {
		ctx := context.Background()
		d := inmemory.NewDriver()

		turn := storagetest.NewTurn("t1", "alice", "c1", 0)
		Expect(d.Put(ctx, turn)).To(Succeed())
		turn.Answer = "mutated"

		got, err := d.Get(ctx, "t1")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Answer).To(Equal("answer t1"))

		got.Answer = "mutated again"
		again, _ := d.Get(ctx, "t1")
		Expect(again.Answer).To(Equal("answer t1"))
		Expect(d.Count()).To(Equal(1))
	})
})
