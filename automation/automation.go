package automation

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"kitstock/units"
)

type Options struct {
	// BrowserBin empty lets rod find or download a Chromium build.
	BrowserBin string
	Headless   bool
}

// Rasterizer turns label SVG into PNG with a headless Chromium. The browser
// is started on first use and shared; renders run one at a time. A browser
// that stops answering is replaced on the next render.
type Rasterizer struct {
	opts     Options
	mu       sync.Mutex
	browser  *rod.Browser
	launcher *launcher.Launcher
}

func NewRasterizer(opts Options) *Rasterizer {
	return &Rasterizer{opts: opts}
}

func (r *Rasterizer) connect() (*rod.Browser, error) {
	if r.browser != nil {
		_, err := proto.BrowserGetVersion{}.Call(r.browser)
		if err == nil {
			return r.browser, nil
		}
		zap.S().Warnf("Headless browser stopped responding (%v); restarting", err)
		r.reset()
	}

	// Leakless(false) keeps antivirus software from flagging the helper binary.
	l := launcher.New().Headless(r.opts.Headless).Leakless(false)
	if r.opts.BrowserBin != "" {
		l = l.Bin(r.opts.BrowserBin)
	}
	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}
	zap.S().Infof("Headless browser started (%s)", u)
	r.browser, r.launcher = b, l
	return b, nil
}

// reset drops the current browser and kills its process. r.mu must be held.
func (r *Rasterizer) reset() {
	if r.browser != nil {
		r.browser.Close()
	}
	if r.launcher != nil {
		r.launcher.Kill()
	}
	r.browser, r.launcher = nil, nil
}

// RasterizePNG renders svg on a wpx x hpx CSS-pixel canvas at the given device
// scale and returns the PNG bytes of the <svg> element.
func (r *Rasterizer) RasterizePNG(ctx context.Context, svg string, wpx, hpx, scale float64) ([]byte, error) {
	if scale <= 0 {
		scale = 1
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	b, err := r.connect()
	if err != nil {
		return nil, err
	}

	page, err := b.Page(proto.TargetCreateTarget{})
	if err != nil {
		r.reset()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	defer page.Close()
	page = page.Context(ctx)

	err = page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             int(math.Ceil(wpx)),
		Height:            int(math.Ceil(hpx)),
		DeviceScaleFactor: scale,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set viewport: %w", err)
	}

	if err := page.SetDocumentContent(WrapSVG(svg, wpx, hpx)); err != nil {
		return nil, fmt.Errorf("failed to load label: %w", err)
	}
	el, err := page.Element("svg")
	if err != nil {
		return nil, fmt.Errorf("label svg not found: %w", err)
	}
	png, err := el.Screenshot(proto.PageCaptureScreenshotFormatPng, 100)
	if err != nil {
		return nil, fmt.Errorf("failed to capture label: %w", err)
	}
	return png, nil
}

// Close shuts the browser down if it was started.
func (r *Rasterizer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.browser == nil {
		return nil
	}
	err := r.browser.Close()
	if r.launcher != nil {
		r.launcher.Kill()
	}
	r.browser, r.launcher = nil, nil
	return err
}

// WrapSVG embeds svg in a bare HTML page whose body is exactly the label's
// pixel size, so the element screenshot has no margins.
func WrapSVG(svg string, wpx, hpx float64) string {
	w, h := units.FormatPX(wpx), units.FormatPX(hpx)
	return `<!DOCTYPE html><html><head><meta charset="utf-8"><title>label</title><style>` +
		`html,body{margin:0;padding:0;background:transparent;}` +
		`body{width:` + w + `px;height:` + h + `px;overflow:hidden;}` +
		`svg{display:block;width:` + w + `px;height:` + h + `px;}` +
		`</style></head><body>` + svg + `</body></html>`
}

