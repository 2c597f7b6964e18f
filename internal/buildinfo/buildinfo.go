// Package buildinfo exposes the program name and version stamped at link time.
package buildinfo

// Name is the program name used in user agents and help output.
const Name = "urlbot"

// Version is overridden with -ldflags "-X github.com/JakeFAU/urlbot/internal/buildinfo.Version=...".
var Version = "dev"

// UserAgent is the default HTTP user agent.
func UserAgent() string {
	return Name + "/" + Version
}
