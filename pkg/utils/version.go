// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Version, Sha and Buildtime are stamped at link time with -X flags.
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)
