package entdriver_test

import (
	"context"
	"database/sql"
	"path/filepath"

	"entgo.io/ent/dialect"
	_ "github.com/mattn/go-sqlite3"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/storage"
	"github.com/papercomputeco/relay/pkg/storage/entdriver"
	"github.com/papercomputeco/relay/pkg/storage/storagetest"
)

func openSQLite(path string) *sql.DB {
	db, err := sql.Open("sqlite3", path)
	Expect(err).NotTo(HaveOccurred())
	db.SetMaxOpenConns(1)
	_, err = db.Exec("PRAGMA foreign_keys = ON")
	Expect(err).NotTo(HaveOccurred())
	return db
}

var _ = Describe("EntDriver", func() {
	storagetest.DriverSpecs(func() storage.Driver {
		d, err := entdriver.New(context.Background(), dialect.SQLite, openSQLite(":memory:"))
		Expect(err).NotTo(HaveOccurred())
		return d
	})

	Describe("New", func() {
		It("creates the turns table and its conversation index", func() {
			db := openSQLite(":memory:")
			d, err := entdriver.New(context.Background(), dialect.SQLite, db)
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			var name string
			Expect(db.QueryRow(
				"SELECT name FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND name = ?",
				entdriver.TurnsTable.Name, "turn_user_id_conversation_id_started_at",
			).Scan(&name)).To(Succeed())
			Expect(name).To(Equal("turn_user_id_conversation_id_started_at"))
		})

		It("migrates an existing database without losing turns", func() {
			ctx := context.Background()
			path := filepath.Join(GinkgoT().TempDir(), "turns.sqlite")

			d, err := entdriver.New(ctx, dialect.SQLite, openSQLite(path))
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Put(ctx, storagetest.NewTurn("t1", "alice", "c1", 0))).To(Succeed())
			Expect(d.Close()).To(Succeed())

			d, err = entdriver.New(ctx, dialect.SQLite, openSQLite(path))
			Expect(err).NotTo(HaveOccurred())
			defer d.Close()

			got, err := d.Get(ctx, "t1")
			Expect(err).NotTo(HaveOccurred())
			Expect(got.Query).To(Equal("query t1"))
		})
	})
})
