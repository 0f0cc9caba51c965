package servecmder

import (
	"bytes"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/relay/pkg/config"
	"github.com/papercomputeco/relay/pkg/logger"
	"github.com/papercomputeco/relay/pkg/storage/inmemory"
	"github.com/papercomputeco/relay/pkg/storage/sqlite"
)

func newCommander(dir string, values map[string]string) *ServeCommander {
	v, err := config.InitViper(dir)
	Expect(err).NotTo(HaveOccurred())
	for k, val := range values {
		v.Set(k, val)
	}
	return &ServeCommander{configDir: dir, viper: v, logger: logger.Nop()}
}

var _ = Describe("NewServeCmd", func() {
	It("registers the server flags with config defaults", func() {
		cmd := NewServeCmd()
		Expect(cmd.Use).To(Equal("serve"))

		listen := cmd.Flags().Lookup("listen")
		Expect(listen).NotTo(BeNil())
		Expect(listen.Shorthand).To(Equal("l"))
		Expect(listen.DefValue).To(Equal(":8080"))

		Expect(cmd.Flags().Lookup("storage-driver").DefValue).To(Equal(config.StorageSQLite))
		Expect(cmd.Flags().Lookup("kafka-topic").DefValue).To(Equal("relay.turns"))
		Expect(cmd.Flags().Lookup("idle-timeout").DefValue).To(Equal("2m"))
		Expect(cmd.Flags().Lookup("log-file")).NotTo(BeNil())
	})

	It("lets flags override the config file", func() {
		dir := GinkgoT().TempDir()
		cmd := NewServeCmd()
		cmd.Flags().String("config-dir", dir, "")
		Expect(cmd.Flags().Set("listen", ":9999")).To(Succeed())

		Expect(cmd.PreRunE(cmd, nil)).To(Succeed())

		v, err := config.InitViper(dir)
		Expect(err).NotTo(HaveOccurred())
		config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)
		Expect(v.GetString("server.listen")).To(Equal(":9999"))
	})

	It("refuses to start without a jwt secret", func() {
		dir := GinkgoT().TempDir()
		cmd := NewServeCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.Flags().Bool("debug", false, "")
		cmd.SetArgs([]string{"--storage-driver", "inmemory"})
		cmd.SetOut(&bytes.Buffer{})
		cmd.SetErr(&bytes.Buffer{})

		Expect(cmd.Execute()).To(MatchError(ContainSubstring("auth.jwt_secret is not set")))
	})
})

var _ = Describe("newDriver", func() {
	var dir string

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
	})

	It("opens the in-memory driver", func() {
		c := newCommander(dir, map[string]string{"storage.driver": "inmemory"})
		driver, err := c.newDriver()
		Expect(err).NotTo(HaveOccurred())
		Expect(driver).To(BeAssignableToTypeOf(&inmemory.Driver{}))
	})

	It("opens SQLite in the config directory by default", func() {
		c := newCommander(dir, map[string]string{"storage.driver": "sqlite"})
		driver, err := c.newDriver()
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(driver.Close)

		Expect(driver).To(BeAssignableToTypeOf(&sqlite.Driver{}))
		Expect(filepath.Join(dir, "relay.sqlite")).To(BeARegularFile())
	})

	It("requires a DSN for postgres", func() {
		c := newCommander(dir, map[string]string{"storage.driver": "postgres"})
		_, err := c.newDriver()
		Expect(err).To(MatchError(ContainSubstring("storage.postgres_dsn is not set")))
	})

	It("rejects unknown drivers", func() {
		c := newCommander(dir, map[string]string{"storage.driver": "etcd"})
		_, err := c.newDriver()
		Expect(err).To(MatchError(`unknown storage driver "etcd"`))
	})
})

var _ = Describe("newPublisher", func() {
	It("disables publishing without brokers", func() {
		c := newCommander(GinkgoT().TempDir(), nil)
		publisher, err := c.newPublisher()
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher).To(BeNil())
	})

	It("builds a kafka publisher from the broker list", func() {
		c := newCommander(GinkgoT().TempDir(), map[string]string{"events.kafka_brokers": "localhost:9092, localhost:9093"})
		publisher, err := c.newPublisher()
		Expect(err).NotTo(HaveOccurred())
		Expect(publisher).NotTo(BeNil())
		Expect(publisher.Close()).To(Succeed())
	})
})

var _ = Describe("parseIdleTimeout", func() {
	DescribeTable("parses durations",
		func(in string, want time.Duration) {
			got, err := parseIdleTimeout(in)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		},
		Entry("default", "2m", 2*time.Minute),
		Entry("disabled", "0", time.Duration(0)),
		Entry("empty", "", time.Duration(0)),
	)

	It("rejects garbage and negatives", func() {
		_, err := parseIdleTimeout("soon")
		Expect(err).To(HaveOccurred())
		_, err = parseIdleTimeout("-1s")
		Expect(err).To(MatchError(ContainSubstring("must not be negative")))
	})
})
