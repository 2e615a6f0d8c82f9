package app

import (
	"io"
	"os"

	"github.com/tphakala/quack-go/internal/buildinfo"
	"github.com/tphakala/quack-go/internal/conf"
)

// Runtime carries what the root command resolves for its subcommands.
// Settings is filled in before any subcommand runs.
type Runtime struct {
	Settings *conf.Settings

	// ServerOverride replaces the stored base address for this run only
	ServerOverride string

	// Build is the metadata injected at link time
	Build *buildinfo.Context

	Out io.Writer
}

// Stdout returns Out, or os.Stdout when unset.
func (r *Runtime) Stdout() io.Writer {
	if r.Out == nil {
		return os.Stdout
	}
	return r.Out
}

// Options returns the App options implied by the command line.
func (r *Runtime) Options() []Option {
	opts := []Option{WithBuildInfo(r.Build)}
	if r.ServerOverride != "" {
		opts = append(opts, WithServerOverride(r.ServerOverride))
	}
	return opts
}
