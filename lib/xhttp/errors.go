package xhttp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"oss.terrastruct.com/cmdlog"
)

// Error is a failed request. Msg is what the client sees; Err is what gets logged.
type Error struct {
	Status int
	Msg    string
	Err    error
}

// Errorf returns an Error with status and msg wrapping the formatted cause.
// An empty msg is answered with http.StatusText(status).
func Errorf(status int, msg string, format string, v ...interface{}) error {
	return WrapError(status, msg, fmt.Errorf(format, v...))
}

func WrapError(status int, msg string, err error) error {
	return Error{Status: status, Msg: msg, Err: err}
}

func (e Error) Unwrap() error {
	return e.Err
}

func (e Error) Error() string {
	return fmt.Sprintf("%d %s: %v", e.Status, e.message(), e.Err)
}

func (e Error) message() string {
	if e.Msg == "" {
		return http.StatusText(e.Status)
	}
	return e.Msg
}

// toError maps err onto an Error with a 4xx or 5xx status.
func toError(err error) Error {
	var herr Error
	if !errors.As(err, &herr) {
		return Error{Status: http.StatusInternalServerError, Err: err}
	}
	if herr.Status < 400 || herr.Status >= 600 {
		return Error{
			Status: http.StatusInternalServerError,
			Err:    fmt.Errorf("non error status %d: %w", herr.Status, herr.Err),
		}
	}
	return herr
}

// Handler serves Func. A returned error is logged, at warn for 4xx and error for 5xx,
// and answered with {"error": msg} unless Func already wrote a response.
type Handler struct {
	Log  *cmdlog.Logger
	Func func(w http.ResponseWriter, r *http.Request) error
}

func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.Func(w, r)
	if err == nil {
		return
	}

	herr := toError(err)
	if herr.Status < 500 {
		h.Log.Warn.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	} else {
		h.Log.Error.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}

	if ww, ok := w.(interface{ Written() bool }); ok && ww.Written() {
		return
	}
	writeJSON(h.Log, w, herr.Status, map[string]string{"error": herr.message()})
}

func writeJSON(clog *cmdlog.Logger, w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		clog.Error.Printf("failed to encode response: %v", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}
