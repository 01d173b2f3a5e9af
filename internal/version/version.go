// Package version exposes the build version injected at link time.
package version

// version is overridden via -ldflags at build time.
var version = "dev"

// Value returns the CLI version string.
func Value() string {
	return version
}
