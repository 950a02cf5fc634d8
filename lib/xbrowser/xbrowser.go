// Package xbrowser opens URLs in the user's browser.
package xbrowser

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/pkg/browser"

	"oss.terrastruct.com/xos"
)

// Disabled is the $BROWSER / --browser value that opens nothing.
const Disabled = "0"

// Open opens url with $BROWSER set in env or the system default browser.
func Open(ctx context.Context, env *xos.Env, url string) error {
	return OpenWith(ctx, env.Getenv("BROWSER"), url)
}

// OpenWith runs the shell command bin with url as $1. An empty bin uses the system
// default and Disabled does nothing.
func OpenWith(ctx context.Context, bin, url string) error {
	switch bin {
	case Disabled:
		return nil
	case "":
		return browser.OpenURL(url)
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", fmt.Sprintf(`%s "$1"`, bin), "--", url)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("failed to run %v (out: %q): %w", cmd.Args, out, err)
	}
	return nil
}
