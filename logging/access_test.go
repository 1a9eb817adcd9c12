package logging

import (
	"bytes"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testRequest() *http.Request {
	r, _ := http.NewRequest("GET", "http://example.org/apache_pb.gif", nil)
	r.RequestURI = "/apache_pb.gif"
	r.RemoteAddr = "127.0.0.1"
	return r
}

func testDate() time.Time {
	l := time.FixedZone("foo", -7*3600)
	return time.Date(2000, 10, 10, 13, 55, 36, 0, l)
}

func TestLogAccessLineFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf})

	LogAccess(&AccessEntry{
		Request:      testRequest(),
		ResponseSize: 2326,
		StatusCode:   http.StatusTeapot,
		RequestTime:  testDate(),
		Duration:     42 * time.Millisecond,
		OriginID:     "b1",
	})

	line := buf.String()
	assert.Contains(t, line, "127.0.0.1")
	assert.Contains(t, line, `"GET /apache_pb.gif HTTP/1.1"`)
	assert.Contains(t, line, "418")
	assert.Contains(t, line, "2326")
	assert.Contains(t, line, "10/Oct/2000:13:55:36 -0700")
	assert.Contains(t, line, "b1")
}

func TestLogAccessJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{AccessLogOutput: &buf, JSON: true})

	LogAccess(&AccessEntry{
		Request:      testRequest(),
		ResponseSize: 2326,
		StatusCode:   http.StatusTeapot,
		RequestTime:  testDate(),
		Duration:     42 * time.Millisecond,
	})

	line := buf.String()
	assert.Contains(t, line, `"status":418`)
	assert.Contains(t, line, `"response-size":2326`)
}
