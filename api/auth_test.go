package api

import (
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tokens", func() {
	It("round-trips the subject", func() {
		token, err := IssueToken("s3cret", "alice", time.Minute)
		Expect(err).NotTo(HaveOccurred())

		user, err := ValidateToken("s3cret", token)
		Expect(err).NotTo(HaveOccurred())
		Expect(user).To(Equal("alice"))
	})

	It("refuses to issue with an empty secret or user", func() {
		_, err := IssueToken("", "alice", time.Minute)
		Expect(err).To(HaveOccurred())

		_, err = IssueToken("s3cret", "", time.Minute)
		Expect(err).To(HaveOccurred())
	})

	DescribeTable("rejects bad tokens",
		func(token func() string) {
			_, err := ValidateToken("s3cret", token())
			Expect(err).To(MatchError(ErrInvalidToken))
		},
		Entry("wrong secret", func() string {
			t, _ := IssueToken("other", "alice", time.Minute)
			return t
		}),
		Entry("expired", func() string {
			t, _ := IssueToken("s3cret", "alice", -time.Minute)
			return t
		}),
		Entry("foreign issuer", func() string {
			t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Issuer:    "someone-else",
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			}).SignedString([]byte("s3cret"))
			return t
		}),
		Entry("no expiry", func() string {
			t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Issuer:  tokenIssuer,
				Subject: "alice",
			}).SignedString([]byte("s3cret"))
			return t
		}),
		Entry("no subject", func() string {
			t, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			}).SignedString([]byte("s3cret"))
			return t
		}),
		Entry("unsigned", func() string {
			t, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				Subject:   "alice",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
			}).SignedString(jwt.UnsafeAllowNoneSignatureType)
			return t
		}),
		Entry("garbage", func() string { return "not-a-jwt" }),
	)
})

var _ = Describe("requireAuth", func() {
	var f *fixture

	BeforeEach(func() {
		f = newFixture()
	})

	AfterEach(func() {
		f.close()
	})

	send := func(authorization string) *http.Response {
		req := httptest.NewRequest(http.MethodPost, RouteTurns, nil)
		if authorization != "" {
			req.Header.Set("Authorization", authorization)
		}
		resp, err := f.server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	It("rejects requests without a bearer token", func() {
		resp := send("")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Bearer"))
		Expect(decodeError(resp).Code).To(Equal(CodeUnauthorized))
	})

	It("rejects other authorization schemes", func() {
		resp := send("Basic YWxpY2U6cHc=")
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("rejects invalid tokens", func() {
		token, err := IssueToken("wrong-secret", "alice", time.Minute)
		Expect(err).NotTo(HaveOccurred())

		resp := send("Bearer " + token)
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(decodeError(resp).Error).To(Equal("invalid bearer token"))
	})

	It("lets valid tokens through to the handler", func() {
		resp := send("Bearer " + f.token)
		// The empty body fails validation in the handler, past auth.
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("leaves public routes open", func() {
		req := httptest.NewRequest(http.MethodGet, "/ping", nil)
		resp, err := f.server.app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})
})
