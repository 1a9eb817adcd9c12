package logging

import (
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"
)

// AccessEntry describes one completed request/response exchange.
type AccessEntry struct {
	Request      *http.Request
	ResponseSize int64
	StatusCode   int
	RequestTime  time.Time
	Duration     time.Duration
	OriginID     string
	RequestID    string
}

// LogAccess emits one access log entry.
func LogAccess(e *AccessEntry) {
	accessLog.WithFields(logrus.Fields{
		"entry": e,
	}).Info()
}

const commonLogTimeFormat = "02/Jan/2006:15:04:05 -0700"

// accessLineFormatter renders an Apache Common-Log-Format-ish line,
// extended with duration, requested host and origin ID.
type accessLineFormatter struct{}

func (accessLineFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	e, _ := entry.Data["entry"].(*AccessEntry)
	if e == nil {
		return []byte(entry.Message + "\n"), nil
	}

	r := e.Request
	u, _ := url.ParseRequestURI(r.RequestURI)
	path := r.RequestURI
	if u != nil {
		path = u.Path
		if u.RawQuery != "" {
			path += "?" + u.RawQuery
		}
	}

	authUser := "-"
	if r.URL != nil && r.URL.User != nil {
		if name := r.URL.User.Username(); name != "" {
			authUser = name
		}
	}

	line := fmt.Sprintf(
		"%s - %s [%s] %q %d %d %q %q %d %s %s %s\n",
		r.RemoteAddr,
		authUser,
		e.RequestTime.Format(commonLogTimeFormat),
		fmt.Sprintf("%s %s %s", r.Method, path, r.Proto),
		e.StatusCode,
		e.ResponseSize,
		r.Referer(),
		r.UserAgent(),
		e.Duration.Milliseconds(),
		r.Host,
		e.OriginID,
		e.RequestID,
	)
	return []byte(line), nil
}

// accessJSONFormatter renders one JSON object per access log entry.
type accessJSONFormatter struct {
	base logrus.JSONFormatter
}

func (f *accessJSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	e, _ := entry.Data["entry"].(*AccessEntry)
	if e == nil {
		return f.base.Format(entry)
	}

	fields := logrus.Fields{
		"host":           e.Request.RemoteAddr,
		"method":         e.Request.Method,
		"uri":            e.Request.RequestURI,
		"status":         e.StatusCode,
		"response-size":  e.ResponseSize,
		"duration-ms":    e.Duration.Milliseconds(),
		"timestamp":      e.RequestTime.Format(commonLogTimeFormat),
		"requested-host": e.Request.Host,
		"origin":         e.OriginID,
		"request-id":     e.RequestID,
	}

	sub := entry.WithFields(fields)
	delete(sub.Data, "entry")
	sub.Message = ""
	return f.base.Format(sub)
}
