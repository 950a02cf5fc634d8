// Package xmain is the shared main for impactmap commands: it sets up logging and flags,
// runs the command and turns signals into a graceful shutdown.
package xmain

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"oss.terrastruct.com/cmdlog"
	"oss.terrastruct.com/xos"

	"oss.terrastruct.com/impactmap/lib/log"
)

type RunFunc func(context.Context, *State) error

func Main(run RunFunc) {
	name := ""
	args := []string(nil)
	if len(os.Args) > 0 {
		name = os.Args[0]
		args = os.Args[1:]
	}

	ms := NewState(name, xos.NewEnv(os.Environ()), args)
	ms.PWD, _ = os.Getwd()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)

	ctx := log.Stderr(context.Background(), false)
	err := ms.Main(ctx, sigs, run)
	if err != nil {
		code, msg := ms.describe(err)
		if msg != "" {
			ms.Log.Error.Print(msg)
		}
		os.Exit(code)
	}
}

// NewState returns a State on the process stdio.
func NewState(name string, env *xos.Env, args []string) *State {
	ms := &State{
		Name: name,

		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,

		Env: env,
	}
	ms.Log = cmdlog.Log(ms.Env, ms.Stderr)
	ms.Opts = NewOpts(ms.Env, ms.Log, args)
	return ms
}

func (ms *State) describe(err error) (int, string) {
	var eerr ExitError
	var uerr UsageError
	switch {
	case errors.As(err, &eerr):
		return eerr.Code, eerr.Message
	case errors.As(err, &uerr):
		return 1, fmt.Sprintf("%s\nRun with --help to see usage.", err)
	default:
		return 1, err.Error()
	}
}

type State struct {
	Name string
	PWD  string

	Stdin  io.Reader
	Stdout io.WriteCloser
	Stderr io.WriteCloser

	Log  *cmdlog.Logger
	Env  *xos.Env
	Opts *Opts
}

// Main runs run until it returns or a signal arrives. On a signal the context is cancelled
// and run gets a minute to return.
func (ms *State) Main(ctx context.Context, sigs <-chan os.Signal, run RunFunc) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		done <- run(ctx, ms)
	}()

	select {
	case err := <-done:
		return err
	case sig := <-sigs:
		ms.Log.Warn.Printf("received signal %v: shutting down...", sig)
		cancel()
		select {
		case err := <-done:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("failed to shutdown: %w", err)
			}
			if sig == syscall.SIGTERM {
				return nil
			}
			return ExitError{Code: 1}
		case <-time.After(time.Minute):
			return ExitErrorf(1, "took longer than 1 minute to shutdown: exiting forcefully")
		}
	}
}

type ExitError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func ExitErrorf(code int, msg string, v ...interface{}) ExitError {
	return ExitError{
		Code:    code,
		Message: fmt.Sprintf(msg, v...),
	}
}

func (ee ExitError) Error() string {
	s := fmt.Sprintf("exiting with code %d", ee.Code)
	if ee.Message != "" {
		s += ": " + ee.Message
	}
	return s
}

type UsageError struct {
	Message string `json:"message"`
}

func UsageErrorf(msg string, v ...interface{}) UsageError {
	return UsageError{
		Message: fmt.Sprintf(msg, v...),
	}
}

func (ue UsageError) Error() string {
	return fmt.Sprintf("bad usage: %s", ue.Message)
}

// AbsPath resolves fp against PWD.
func (ms *State) AbsPath(fp string) string {
	if fp == "-" || filepath.IsAbs(fp) || ms.PWD == "" {
		return fp
	}
	return filepath.Join(ms.PWD, fp)
}

// HumanPath shortens fp relative to PWD for log lines.
func (ms *State) HumanPath(fp string) string {
	if ms.PWD == "" || fp == "-" {
		return fp
	}
	rel, err := filepath.Rel(ms.PWD, fp)
	if err != nil || strings.HasPrefix(rel, "..") {
		return fp
	}
	return rel
}

func (ms *State) ReadPath(fp string) ([]byte, error) {
	if fp == "-" {
		return io.ReadAll(ms.Stdin)
	}
	return os.ReadFile(ms.AbsPath(fp))
}

func (ms *State) WritePath(fp string, p []byte) error {
	if fp == "-" {
		_, err := ms.Stdout.Write(p)
		if err != nil {
			return err
		}
		return ms.Stdout.Close()
	}
	return os.WriteFile(ms.AbsPath(fp), p, 0644)
}
