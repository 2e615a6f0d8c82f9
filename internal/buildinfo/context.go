// Package buildinfo carries build-time metadata, kept apart from user
// configuration.
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not set at build time.
const UnknownValue = "unknown"

// Context holds the values injected with -ldflags at build time.
type Context struct {
	// Version is the git tag the binary was built from
	Version string

	// BuildDate is when the binary was built
	BuildDate string
}

// NewContext creates a Context.
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version, or UnknownValue.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date, or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release returns the release name used in error reports.
func (c *Context) Release() string {
	return fmt.Sprintf("quack-go@%s", c.GetVersion())
}

// String returns a one-line description for the version command.
func (c *Context) String() string {
	return fmt.Sprintf("quack-go %s (built %s)", c.GetVersion(), c.GetBuildDate())
}
