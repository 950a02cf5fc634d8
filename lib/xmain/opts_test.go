package xmain

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"

	"oss.terrastruct.com/cmdlog"
	"oss.terrastruct.com/xos"

	tassert "oss.terrastruct.com/util-go/assert"
)

func newTestOpts(environ []string, args ...string) *Opts {
	env := xos.NewEnv(environ)
	return NewOpts(env, cmdlog.Log(env, io.Discard), args)
}

func TestOpts(t *testing.T) {
	t.Parallel()

	t.Run("env_fallback", func(t *testing.T) {
		t.Parallel()

		o := newTestOpts([]string{"PORT=8080", "DEBUG=1"})
		port := o.String("PORT", "port", "p", "0", "")
		debug, err := o.Bool("DEBUG", "debug", "d", false, "")
		tassert.Success(t, err)
		settle, err := o.Int64("IMPACTMAP_SETTLE", "settle", "", 50, "")
		tassert.Success(t, err)

		tassert.Success(t, o.Parse())
		assert.Equal(t, "8080", *port)
		assert.True(t, *debug)
		assert.Equal(t, int64(50), *settle)
	})

	t.Run("flag_wins", func(t *testing.T) {
		t.Parallel()

		o := newTestOpts([]string{"PORT=8080"}, "--port=9000", "seed.json")
		port := o.String("PORT", "port", "p", "0", "")
		tassert.Success(t, o.Parse())
		assert.Equal(t, "9000", *port)
		assert.Equal(t, []string{"seed.json"}, o.Flags.Args())
	})

	t.Run("bad_env", func(t *testing.T) {
		t.Parallel()

		o := newTestOpts([]string{"IMPACTMAP_SETTLE=soon", "DEBUG=yes"})
		_, err := o.Int64("IMPACTMAP_SETTLE", "settle", "", 50, "")
		assert.Error(t, err)
		_, err = o.Bool("DEBUG", "debug", "d", false, "")
		assert.Error(t, err)
	})

	t.Run("bad_flag", func(t *testing.T) {
		t.Parallel()

		o := newTestOpts(nil, "--nope")
		err := o.Parse()
		var uerr UsageError
		assert.ErrorAs(t, err, &uerr)
	})

	t.Run("defaults_lists_envs", func(t *testing.T) {
		t.Parallel()

		o := newTestOpts(nil)
		o.String("HOST", "host", "", "localhost", "host to listen on")
		o.String("", "salt", "", "", "id salt")
		s := o.Defaults()
		assert.Contains(t, s, "--host")
		assert.Contains(t, s, "- $HOST")
		assert.NotContains(t, s, "$\n")
	})
}
