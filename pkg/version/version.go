// Package version reports the build version stamped at link time.
package version

// version is overridden with -ldflags "-X itemservice/pkg/version.version=v1.2.3".
var version = "dev"

// Version returns the build version.
func Version() string {
	return version
}
