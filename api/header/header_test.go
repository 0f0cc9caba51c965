package header

import (
	"mime"
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Handler", func() {
	var (
		app *fiber.App
		hh  *Handler
	)

	BeforeEach(func() {
		app = fiber.New()
		hh = NewHandler()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	Describe("RequestID", func() {
		It("echoes the client's request ID", func() {
			var got string
			app.Get("/test", func(c *fiber.Ctx) error {
				got = hh.RequestID(c)
				return c.SendStatus(fiber.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/test", nil)
			req.Header.Set(RequestIDHeader, "req-123")

			resp, err := app.Test(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(got).To(Equal("req-123"))
			Expect(resp.Header.Get(RequestIDHeader)).To(Equal("req-123"))
		})

		It("mints an ID when the client sent none", func() {
			app.Get("/test", func(c *fiber.Ctx) error {
				hh.RequestID(c)
				return c.SendStatus(fiber.StatusOK)
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()

			Expect(resp.Header.Get(RequestIDHeader)).To(HaveLen(36))
		})
	})

	It("sets event-stream headers", func() {
		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetStreamHeaders(c)
			return c.SendString("data: {}\n\n")
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))
	})

	It("sets file headers with a default content type", func() {
		app.Get("/test", func(c *fiber.Ctx) error {
			hh.SetFileHeaders(c, "notes.md", "", true)
			return c.Send([]byte("x"))
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/test", nil))
		Expect(err).NotTo(HaveOccurred())
		resp.Body.Close()

		Expect(resp.Header.Get("Content-Type")).To(Equal("application/octet-stream"))
		Expect(resp.Header.Get("Content-Disposition")).To(Equal("attachment; filename=notes.md"))
	})
})

var _ = Describe("ContentDisposition", func() {
	It("uses inline without a name", func() {
		Expect(ContentDisposition("", false)).To(Equal("inline"))
	})

	It("quotes names that are not tokens", func() {
		Expect(ContentDisposition("my notes.md", false)).To(Equal(`inline; filename="my notes.md"`))
	})

	It("round-trips non-ASCII names", func() {
		v := ContentDisposition("résumé final.txt", true)

		disposition, params, err := mime.ParseMediaType(v)
		Expect(err).NotTo(HaveOccurred())
		Expect(disposition).To(Equal("attachment"))
		Expect(params["filename"]).To(Equal("résumé final.txt"))
	})
})
