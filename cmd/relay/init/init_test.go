package initcmder_test

import (
	"bytes"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	initcmder "github.com/papercomputeco/relay/cmd/relay/init"
	"github.com/papercomputeco/relay/pkg/config"
)

var _ = Describe("NewInitCmd", func() {
	var (
		tmpDir  string
		origDir string
		out     *bytes.Buffer
	)

	run := func(args ...string) error {
		cmd := initcmder.NewInitCmd()
		cmd.SetArgs(args)
		cmd.SetOut(out)
		cmd.SetErr(&bytes.Buffer{})
		return cmd.Execute()
	}

	BeforeEach(func() {
		var err error
		tmpDir = GinkgoT().TempDir()
		origDir, err = os.Getwd()
		Expect(err).NotTo(HaveOccurred())
		Expect(os.Chdir(tmpDir)).To(Succeed())
		out = &bytes.Buffer{}
	})

	AfterEach(func() {
		Expect(os.Chdir(origDir)).To(Succeed())
	})

	It("creates .relay in the working directory", func() {
		Expect(run()).To(Succeed())
		Expect(filepath.Join(tmpDir, ".relay")).To(BeADirectory())
		Expect(filepath.Join(tmpDir, ".relay", "config.toml")).NotTo(BeAnExistingFile())
	})

	It("is idempotent", func() {
		Expect(run()).To(Succeed())
		out.Reset()
		Expect(run()).To(Succeed())
		Expect(out.String()).To(ContainSubstring("Already initialized"))
	})

	It("writes a preset config", func() {
		Expect(run("--preset", "cloud")).To(Succeed())

		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".relay"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Dify.BaseURL).To(Equal("https://api.dify.ai/v1"))
	})

	It("never overwrites an existing config", func() {
		Expect(run("--preset", "self-hosted")).To(Succeed())
		Expect(run("--preset", "cloud")).To(Succeed())
		Expect(out.String()).To(ContainSubstring("preset not applied"))

		cfger, err := config.NewConfiger(filepath.Join(tmpDir, ".relay"))
		Expect(err).NotTo(HaveOccurred())
		cfg, err := cfger.LoadConfig()
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.Dify.BaseURL).To(Equal("http://localhost/v1"))
	})

	It("rejects unknown presets before touching disk", func() {
		Expect(run("--preset", "mars")).To(MatchError(ContainSubstring("unknown preset")))
		Expect(filepath.Join(tmpDir, ".relay")).NotTo(BeAnExistingFile())
	})
})
