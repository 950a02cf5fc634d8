package xhttp

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"runtime/debug"
	"time"

	"golang.org/x/text/message"

	"oss.terrastruct.com/cmdlog"
)

// responseWriter records the status and body length for the access log.
type responseWriter struct {
	http.ResponseWriter

	written bool
	status  int
	length  int
}

var _ interface {
	http.Hijacker
	http.Flusher
	Written() bool
} = &responseWriter{}

func (rw *responseWriter) WriteHeader(statusCode int) {
	if !rw.written {
		rw.written = true
		rw.status = statusCode
	}
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *responseWriter) Write(p []byte) (int, error) {
	if !rw.written && len(p) > 0 {
		rw.written = true
		if rw.status == 0 {
			rw.status = http.StatusOK
		}
	}
	rw.length += len(p)
	return rw.ResponseWriter.Write(p)
}

// Hijack lets websocket.Accept take over the connection.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("underlying response writer does not implement http.Hijacker: %T", rw.ResponseWriter)
	}
	return hj.Hijack()
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Written() bool {
	return rw.written
}

// accessLog logs every request and turns a panic into a 500.
func accessLog(clog *cmdlog.Logger, next http.Handler) http.Handler {
	printer := message.NewPrinter(message.MatchLanguage("en"))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				clog.Error.Printf("caught panic: %#v\n%s", rec, debug.Stack())
				writeJSON(clog, w, http.StatusInternalServerError, map[string]string{
					"error": http.StatusText(http.StatusInternalServerError),
				})
			}
		}()

		rw := &responseWriter{ResponseWriter: w}

		start := time.Now()
		next.ServeHTTP(rw, r)
		dur := time.Since(start)

		if !rw.Written() {
			_, err := rw.Write(nil)
			if errors.Is(err, http.ErrHijacked) {
				clog.Success.Printf("%s %s %v: hijacked", r.Method, r.URL, dur)
				return
			}
			clog.Warn.Printf("%s %s %v: no response written", r.Method, r.URL, dur)
			return
		}

		var statusLogger *log.Logger
		switch {
		case rw.status < 300:
			statusLogger = clog.Success
		case rw.status < 400:
			statusLogger = clog.Info
		case rw.status < 500:
			statusLogger = clog.Warn
		default:
			statusLogger = clog.Error
		}
		statusLogger.Printf("%s %s %d %sB %v", r.Method, r.URL, rw.status, printer.Sprint(rw.length), dur)
	})
}
