// Package version carries the build version, overridden at link time via
// -ldflags "-X git.home.luguber.info/inful/dochub/internal/version.Version=...".
package version

// Version is the dochub release version.
var Version = "dev"
