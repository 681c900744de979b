// Package utils provides bespoke, one off utils that don't make sense to be
// their own package
package utils

// Overridden at build time with -ldflags "-X".
var (
	Version   = "dev"
	Sha       = "HEAD"
	Buildtime = "dev"
)

// UserAgent is the User-Agent value sent on every outgoing request.
func UserAgent() string {
	return "khroma-go/" + Version
}
