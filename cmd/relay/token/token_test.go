package tokencmder_test

import (
	"bytes"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/api"
	tokencmder "github.com/papercomputeco/relay/cmd/relay/token"
	"github.com/papercomputeco/relay/pkg/config"
)

var _ = Describe("NewTokenCmd", func() {
	var (
		dir    string
		stdout *bytes.Buffer
	)

	newCmd := func(args ...string) *cobra.Command {
		cmd := tokencmder.NewTokenCmd()
		cmd.Flags().String("config-dir", dir, "")
		cmd.SetArgs(args)
		cmd.SetOut(stdout)
		cmd.SetErr(&bytes.Buffer{})
		return cmd
	}

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		stdout = &bytes.Buffer{}
	})

	It("prints a token that validates with the same secret", func() {
		Expect(newCmd("--user", "alice", "--jwt-secret", "s3cret").Execute()).To(Succeed())

		user, err := api.ValidateToken("s3cret", strings.TrimSpace(stdout.String()))
		Expect(err).NotTo(HaveOccurred())
		Expect(user).To(Equal("alice"))
	})

	It("requires a user", func() {
		Expect(newCmd("--jwt-secret", "s3cret").Execute()).NotTo(Succeed())
	})

	It("requires a secret", func() {
		Expect(newCmd("--user", "alice").Execute()).To(MatchError("auth.jwt_secret is not set"))
	})

	It("saves the token as client.token", func() {
		Expect(newCmd("--user", "alice", "--jwt-secret", "s3cret", "--save").Execute()).To(Succeed())

		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		saved, err := cfger.GetConfigValue("client.token")
		Expect(err).NotTo(HaveOccurred())
		Expect(saved).To(Equal(strings.TrimSpace(stdout.String())))
	})

	It("reads the secret from config.toml", func() {
		cfger, err := config.NewConfiger(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(cfger.SetConfigValue("auth.jwt_secret", "from-file")).To(Succeed())

		Expect(newCmd("--user", "bob").Execute()).To(Succeed())
		_, err = api.ValidateToken("from-file", strings.TrimSpace(stdout.String()))
		Expect(err).NotTo(HaveOccurred())
	})
})
