package imcli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cdr.dev/slog"
	"github.com/spf13/pflag"

	"oss.terrastruct.com/cmdlog"
	"oss.terrastruct.com/util-go/go2"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imrenderers/imraster"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/imthemes"
	"oss.terrastruct.com/impactmap/lib/log"
	"oss.terrastruct.com/impactmap/lib/png"
	"oss.terrastruct.com/impactmap/lib/textmeasure"
	"oss.terrastruct.com/impactmap/lib/version"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

const (
	RASTER_NATIVE     = "native"
	RASTER_PLAYWRIGHT = "playwright"
)

type config struct {
	host         string
	port         string
	theme        imthemes.Theme
	raster       string
	settle       time.Duration
	stdoutFormat string

	ruler      *textmeasure.Ruler
	renderOpts *imsvg.RenderOpts
}

func Run(ctx context.Context, ms *xmain.State) (err error) {
	hostFlag := ms.Opts.String("HOST", "host", "", "localhost", "host the editor listens on.")
	portFlag := ms.Opts.String("PORT", "port", "p", "0", "port the editor listens on. 0 picks a free port.")
	browserFlag := ms.Opts.String("BROWSER", "browser", "", "", "browser executable that serve opens. Setting to 0 opens no browser.")
	themeFlag, err := ms.Opts.Int64("IMPACTMAP_THEME", "theme", "t", 0, "the diagram theme ID.")
	if err != nil {
		return err
	}
	rasterFlag := ms.Opts.String("IMPACTMAP_RASTER", "raster", "", RASTER_NATIVE, "PNG rasterizer: native draws in process, playwright renders the SVG in headless chromium.")
	settleFlag, err := ms.Opts.Int64("IMPACTMAP_SETTLE", "settle", "", imexport.DefaultSettle.Milliseconds(), "milliseconds to wait after clearing focus before an export is captured. 0 disables the wait.")
	if err != nil {
		return err
	}
	stdoutFormatFlag := ms.Opts.String("", "stdout-format", "", "svg", "output format when render writes to stdout (svg, png).")
	debugFlag, err := ms.Opts.Bool("DEBUG", "debug", "d", false, "print debug logs.")
	if err != nil {
		return err
	}
	versionFlag, err := ms.Opts.Bool("", "version", "v", false, "get the version")
	if err != nil {
		return err
	}

	err = ms.Opts.Parse()
	if errors.Is(err, pflag.ErrHelp) {
		help(ms)
		return nil
	}
	if err != nil {
		return err
	}

	if *debugFlag {
		ms.Env.Setenv("DEBUG", "1")
		ms.Log = cmdlog.Log(ms.Env, ms.Stderr)
		ctx = log.Leveled(ctx, slog.LevelDebug)
	}
	if *browserFlag != "" {
		ms.Env.Setenv("BROWSER", *browserFlag)
	}

	args := ms.Opts.Flags.Args()
	if *versionFlag && len(args) == 0 {
		fmt.Fprintln(ms.Stdout, version.Version)
		return nil
	}

	subcommand := "serve"
	if len(args) > 0 {
		switch args[0] {
		case "serve", "render", "version", "themes":
			subcommand = args[0]
			args = args[1:]
		}
	}

	switch subcommand {
	case "version":
		if len(args) > 0 {
			return xmain.UsageErrorf("version subcommand accepts no arguments")
		}
		fmt.Fprintln(ms.Stdout, version.Version)
		return nil
	case "themes":
		fmt.Fprintf(ms.Stdout, "Available themes:\n%s", imthemes.CLIString())
		return nil
	}

	theme, ok := imthemes.Find(*themeFlag)
	if !ok {
		return xmain.UsageErrorf("-t[heme] could not be found. The available options are:\n%s\nYou provided: %d", imthemes.CLIString(), *themeFlag)
	}
	switch *rasterFlag {
	case RASTER_NATIVE, RASTER_PLAYWRIGHT:
	default:
		return xmain.UsageErrorf("--raster must be %s or %s, got %q", RASTER_NATIVE, RASTER_PLAYWRIGHT, *rasterFlag)
	}
	settle := time.Duration(*settleFlag) * time.Millisecond
	if settle <= 0 {
		settle = -1
	}

	ruler, err := textmeasure.NewRuler()
	if err != nil {
		return err
	}

	cfg := &config{
		host:         *hostFlag,
		port:         *portFlag,
		theme:        theme,
		raster:       *rasterFlag,
		settle:       settle,
		stdoutFormat: *stdoutFormatFlag,
		ruler:        ruler,
		renderOpts: &imsvg.RenderOpts{
			ThemeID: go2.Pointer(theme.ID),
		},
	}

	switch subcommand {
	case "render":
		return renderCmd(ctx, ms, cfg, args)
	default:
		return serveCmd(ctx, ms, cfg, args)
	}
}

// newRasterizer returns the configured rasterizer and a func releasing it.
func newRasterizer(ctx context.Context, ms *xmain.State, cfg *config) (imexport.Rasterizer, func(), error) {
	if cfg.raster != RASTER_PLAYWRIGHT {
		return &imraster.Rasterizer{Ruler: cfg.ruler, Theme: cfg.theme}, func() {}, nil
	}

	ms.Log.Info.Printf("starting headless chromium...")
	pw, err := png.InitPlaywright()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start playwright: %w", err)
	}
	cleanup := func() {
		err := pw.Cleanup()
		if err != nil {
			ms.Log.Error.Printf("failed to stop playwright: %v", err)
		}
	}
	log.Debug(ctx, "playwright ready")
	return &png.Rasterizer{PW: &pw, Opts: cfg.renderOpts}, cleanup, nil
}

func readSeed(ms *xmain.State, fp string) (*imstate.Diagram, error) {
	b, err := ms.ReadPath(fp)
	if err != nil {
		return nil, err
	}
	d, err := imstate.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", ms.HumanPath(fp), err)
	}
	return d, nil
}
