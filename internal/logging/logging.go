// Package logging holds the shared logrus setup used by every mrimesh package.
package logging

import (
	"io"

	"github.com/sirupsen/logrus"
)

var root = logrus.New()

func init() {
	root.SetFormatter(&logrus.TextFormatter{
		DisableTimestamp: true,
	})
	root.SetLevel(logrus.WarnLevel)
}

// For returns a logger tagged with the given component name.
func For(component string) *logrus.Entry {
	return root.WithField("component", component)
}

// Configure switches between quiet (warnings only) and verbose (info) output.
func Configure(verbose bool) {
	if verbose {
		root.SetLevel(logrus.InfoLevel)
		return
	}
	root.SetLevel(logrus.WarnLevel)
}

// SetOutput redirects all log output, mostly for tests and the CLI.
func SetOutput(w io.Writer) {
	root.SetOutput(w)
}

// Root exposes the underlying logger.
func Root() *logrus.Logger {
	return root
}
