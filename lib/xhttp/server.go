// Package xhttp implements http helpers.
package xhttp

import (
	"context"
	"net"
	"net/http"
	"time"

	"oss.terrastruct.com/cmdlog"
	"oss.terrastruct.com/xcontext"
)

const (
	maxHeaderBytes = 1 << 18
	maxBodyBytes   = 1 << 20
)

// Server serves Handler behind access logging and panic recovery.
type Server struct {
	Log     *cmdlog.Logger
	Handler http.Handler

	// ShutdownTimeout bounds the wait for open requests once the serve context is done.
	ShutdownTimeout time.Duration
}

// Serve accepts on l until ctx is done and then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	hs := &http.Server{
		Handler:        http.MaxBytesHandler(accessLog(s.Log, s.Handler), maxBodyBytes),
		ErrorLog:       s.Log.Warn,
		MaxHeaderBytes: maxHeaderBytes,
		ReadTimeout:    time.Minute,
		WriteTimeout:   time.Minute,
		IdleTimeout:    time.Hour,
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errc := make(chan error, 1)
	go func() {
		errc <- hs.Serve(l)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(xcontext.WithoutCancel(ctx), s.ShutdownTimeout)
	defer cancel()
	return hs.Shutdown(sctx)
}
