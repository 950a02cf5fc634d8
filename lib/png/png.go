// Package png rasterizes rendered SVGs in a headless chromium driven by playwright.
package png

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	stdpng "image/png"
	"os"
	"os/exec"
	"strings"
	"sync"

	_ "embed"

	"github.com/playwright-community/playwright-go"

	"oss.terrastruct.com/impactmap/imlayout"
	"oss.terrastruct.com/impactmap/imrenderers/imsvg"
	"oss.terrastruct.com/impactmap/lib/log"
)

type Playwright struct {
	PW             *playwright.Playwright
	Browser        playwright.Browser
	BrowserContext playwright.BrowserContext
	Page           playwright.Page
}

func (pw *Playwright) RestartBrowser() (newPW Playwright, err error) {
	if err = pw.Browser.Close(); err != nil {
		return Playwright{}, err
	}
	return launch(pw.PW)
}

func (pw *Playwright) Cleanup() (err error) {
	if err = pw.Browser.Close(); err != nil {
		return err
	}
	if err = pw.PW.Stop(); err != nil {
		return err
	}
	return nil
}

func InitPlaywright() (Playwright, error) {
	// check if playwright driver/browsers are installed and up to date
	// https://github.com/playwright-community/playwright-go/blob/8e8f670b5fa7ba5365ae4bfc123fea4aac359763/run.go#L64.
	driver, err := playwright.NewDriver(&playwright.RunOptions{})
	if err != nil {
		return Playwright{}, err
	}
	if _, err := os.Stat(driver.DriverBinaryLocation); errors.Is(err, os.ErrNotExist) {
		err = playwright.Install()
		if err != nil {
			return Playwright{}, err
		}
	} else if err == nil {
		cmd := exec.Command(driver.DriverBinaryLocation, "--version")
		output, err := cmd.Output()
		if err != nil || !bytes.Contains(output, []byte(driver.Version)) {
			err = playwright.Install()
			if err != nil {
				return Playwright{}, err
			}
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return Playwright{}, err
	}
	return launch(pw)
}

func launch(pw *playwright.Playwright) (Playwright, error) {
	browser, err := pw.Chromium.Launch()
	if err != nil {
		return Playwright{}, err
	}
	bctx, err := browser.NewContext()
	if err != nil {
		return Playwright{}, err
	}
	page, err := bctx.NewPage()
	if err != nil {
		return Playwright{}, err
	}
	return Playwright{
		PW:             pw,
		Browser:        browser,
		BrowserContext: bctx,
		Page:           page,
	}, nil
}

//go:embed generate_png.js
var genPNGScript string

const pngPrefix = "data:image/png;base64,"

// ExportPNG draws svg onto a canvas scale times its natural size and returns the PNG bytes.
func ExportPNG(page playwright.Page, svg []byte, scale float64) (outputImage []byte, err error) {
	if page == nil {
		return nil, fmt.Errorf("Playwright was not initialized properly for PNG export")
	}

	encodedSVG := base64.StdEncoding.EncodeToString(svg)
	pngInterface, err := page.Evaluate(genPNGScript, map[string]interface{}{
		"src":   "data:image/svg+xml;charset=utf-8;base64," + encodedSVG,
		"scale": scale,
	})
	if err != nil {
		return nil, err
	}

	pngString := fmt.Sprintf("%v", pngInterface)
	if !strings.HasPrefix(pngString, pngPrefix) {
		if len(pngString) > 50 {
			pngString = pngString[0:50] + "..."
		}
		return nil, fmt.Errorf("invalid PNG: %v", pngString)
	}
	splicedPNGString := pngString[len(pngPrefix):]
	return base64.StdEncoding.DecodeString(splicedPNGString)
}

// Rasterizer renders layouts to SVG and rasterizes them in the browser.
// A playwright page runs one evaluation at a time so calls are serialized.
type Rasterizer struct {
	mu   sync.Mutex
	PW   *Playwright
	Opts *imsvg.RenderOpts
}

func (r *Rasterizer) Rasterize(ctx context.Context, d *imlayout.Diagram, scale float64) (image.Image, error) {
	svg, err := imsvg.Render(d, r.Opts)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.PW.Browser != nil && !r.PW.Browser.IsConnected() {
		log.Warn(ctx, "playwright browser disconnected: restarting")
		newPW, err := r.PW.RestartBrowser()
		if err != nil {
			return nil, fmt.Errorf("issue encountered with PNG exporter: %w", err)
		}
		*r.PW = newPW
	}

	b, err := ExportPNG(r.PW.Page, svg, scale)
	if err != nil {
		return nil, err
	}
	return stdpng.Decode(bytes.NewReader(b))
}
