// Package logging provides the application logger and the per-request
// access logger used by the proxy entry point.
package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Options configures the package-level loggers. Init is normally called
// once, from main, before the server starts accepting connections.
type Options struct {
	// AccessLogOutput receives one formatted line per handled request.
	// Defaults to os.Stdout.
	AccessLogOutput io.Writer
	// ApplicationLogOutput receives structured application log entries
	// (breaker transitions, dial failures, gate rejections). Defaults
	// to os.Stderr.
	ApplicationLogOutput io.Writer
	// JSON selects JSON formatting for the access log instead of the
	// default Apache Common-Log-like line.
	JSON bool
	// Level sets the application logger's minimum level.
	Level logrus.Level
}

var (
	accessLog = logrus.New()
	appLog    = logrus.New()
)

// Init configures the package-level loggers. Safe to call more than once
// (tests do), though production code calls it exactly once at startup.
func Init(o Options) {
	if o.AccessLogOutput == nil {
		o.AccessLogOutput = os.Stdout
	}
	if o.ApplicationLogOutput == nil {
		o.ApplicationLogOutput = os.Stderr
	}

	accessLog.Out = o.AccessLogOutput
	if o.JSON {
		accessLog.Formatter = &accessJSONFormatter{}
	} else {
		accessLog.Formatter = &accessLineFormatter{}
	}

	appLog.Out = o.ApplicationLogOutput
	appLog.Formatter = &logrus.TextFormatter{FullTimestamp: true}
	if o.Level != 0 {
		appLog.SetLevel(o.Level)
	} else {
		appLog.SetLevel(logrus.InfoLevel)
	}
}

// App returns the shared application logger.
func App() *logrus.Logger { return appLog }
