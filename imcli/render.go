package imcli

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"oss.terrastruct.com/xdefer"

	"oss.terrastruct.com/impactmap/imexport"
	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/imstate"
	"oss.terrastruct.com/impactmap/lib/log"
	"oss.terrastruct.com/impactmap/lib/xmain"
)

func renderCmd(ctx context.Context, ms *xmain.State, cfg *config, args []string) (err error) {
	var seedPath, outPath string
	switch len(args) {
	case 1:
		outPath = args[0]
	case 2:
		seedPath, outPath = args[0], args[1]
	default:
		return xmain.UsageErrorf("render takes [seed.json] and an output path")
	}
	defer xdefer.Errorf(&err, "failed to render %s", ms.HumanPath(outPath))

	format := strings.TrimPrefix(filepath.Ext(outPath), ".")
	if outPath == "-" {
		format = cfg.stdoutFormat
	}
	if format != "svg" && format != "png" {
		return xmain.UsageErrorf("unsupported output format %q: expected .svg or .png", format)
	}

	d := imstate.New()
	if seedPath != "" {
		d, err = readSeed(ms, seedPath)
		if err != nil {
			return err
		}
	}
	ld := imlayout.Layout(d, cfg.ruler, nil)

	if format == "svg" {
		svg, err := imsvg.Render(ld, cfg.renderOpts)
		if err != nil {
			return err
		}
		err = ms.WritePath(outPath, svg)
		if err != nil {
			return err
		}
		ms.Log.Success.Printf("successfully rendered %s", ms.HumanPath(outPath))
		return nil
	}

	ctx, cancel := log.WithTimeout(ctx, time.Minute*2)
	defer cancel()

	rast, cleanup, err := newRasterizer(ctx, ms, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	var saver imexport.Saver = imexport.FileSaver{Path: ms.AbsPath(outPath)}
	if outPath == "-" {
		saver = imexport.SaverFunc(func(ctx context.Context, filename, dataURI string) error {
			b, err := imexport.DecodeDataURI(dataURI)
			if err != nil {
				return err
			}
			return ms.WritePath("-", b)
		})
	}
	e := &imexport.Exporter{
		Rasterizer: rast,
		Saver:      saver,
		Settle:     -1,
	}
	err = e.Export(ctx, imexport.Still{Layout: ld})
	if err != nil {
		return err
	}
	ms.Log.Success.Printf("successfully rendered %s at %gx", ms.HumanPath(outPath), imexport.DeviceScale)
	return nil
}
