package postgres_test

import (
	"context"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/postgres"
	"github.com/papercomputeco/relay/pkg/storage/storagetest"
)

// connStr returns the PostgreSQL connection string from environment or skips the test.
func connStr() string {
	dsn := os.Getenv("RELAY_TEST_POSTGRES_DSN")
	if dsn == "" {
		Skip("RELAY_TEST_POSTGRES_DSN not set, skipping PostgreSQL tests")
	}
	return dsn
}

var _ = Describe("Driver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		ctx := context.Background()

		d, err := postgres.NewDriver(ctx, connStr())
		Expect(err).NotTo(HaveOccurred())

		// Clean all turns before each test for isolation.
		Expect(d.Driver.Exec(ctx, "TRUNCATE relay_turns", []any{}, nil)).To(Succeed())
		return d
	})

	It("fails fast for an unreachable server", func() {
		_, err := postgres.NewDriver(context.Background(), "postgres://relay@127.0.0.1:1/relay?connect_timeout=1")
		Expect(err).To(HaveOccurred())
	})
})
