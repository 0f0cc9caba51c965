package utils

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Truncate", func() {
	It("returns the string unchanged when within the limit", func() {
		Expect(Truncate("short", 10)).To(Equal("short"))
	})

	It("returns the string unchanged when exactly at the limit", func() {
		Expect(Truncate("12345", 5)).To(Equal("12345"))
	})

	It("truncates with ellipsis when over the limit", func() {
		Expect(Truncate("this is a long string", 10)).To(Equal("this is a ..."))
	})

	It("never splits a multi-byte character", func() {
		Expect(Truncate("héllo wörld", 5)).To(Equal("héllo..."))
	})
})

var _ = Describe("MaskSecret", func() {
	It("keeps empty values empty", func() {
		Expect(MaskSecret("")).To(BeEmpty())
	})

	It("fully masks short secrets", func() {
		Expect(MaskSecret("abc")).To(Equal("********"))
	})

	It("shows the last four characters of long secrets", func() {
		Expect(MaskSecret("app-1234567890abcd")).To(Equal("****abcd"))
	})
})
