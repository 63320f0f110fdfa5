package render

import (
	"context"
	"io"
	"os"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/cloudratio/advisor-report-backend/internal/types"
)

// Browser wraps one headless browser instance together with the launcher that
// spawned it, so cleanup can remove the temporary user data dir.
type Browser struct {
	rod      *rod.Browser
	launcher *launcher.Launcher
}

func (b *Browser) healthy() bool {
	_, err := b.rod.Version()
	return err == nil
}

func (b *Browser) close() {
	if b.rod != nil {
		_ = b.rod.Close()
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
	}
}

// OpenReport writes the document to a temporary file and opens it in a fresh
// page sized to the configured viewport. The returned cleanup closes the page
// and removes the file.
func (b *Browser) OpenReport(ctx context.Context, html []byte, width int, height int) (*rod.Page, func(), error) {
	tmp, err := os.CreateTemp("", "advisor-report-*.html")
	if err != nil {
		return nil, nil, types.Fatal("write report to disk", err)
	}
	path := tmp.Name()
	if _, err := tmp.Write(html); err != nil {
		tmp.Close()
		os.Remove(path)
		return nil, nil, types.Fatal("write report to disk", err)
	}
	tmp.Close()

	page, err := b.rod.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		os.Remove(path)
		return nil, nil, types.Transient("open browser page", err)
	}
	cleanup := func() {
		_ = page.Close()
		_ = os.Remove(path)
	}

	err = proto.EmulationSetDeviceMetricsOverride{
		Width:             width,
		Height:            height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}.Call(page)
	if err != nil {
		log.Warnf("unable to set viewport %dx%d: %v", width, height, err)
	}

	if err := page.Context(ctx).Navigate("file://" + path); err != nil {
		cleanup()
		return nil, nil, types.Transient("navigate to report", err)
	}
	return page, cleanup, nil
}

// PrintPDF snapshots the current page as a paginated document. The template
// carries its own @page rules, so the browser's CSS page size is preferred.
func PrintPDF(ctx context.Context, page *rod.Page) ([]byte, error) {
	stream, err := page.Context(ctx).PDF(&proto.PagePrintToPDF{
		PrintBackground:   true,
		PreferCSSPageSize: true,
	})
	if err != nil {
		return nil, types.Transient("print report to pdf", err)
	}
	defer stream.Close()
	data, err := io.ReadAll(stream)
	if err != nil {
		return nil, types.Transient("read pdf stream", err)
	}
	return data, nil
}

// BrowserPool hands out up to size browser instances with a checkout/return
// discipline. Instances are launched lazily and health-checked on reuse.
type BrowserPool struct {
	mu       sync.Mutex
	idle     chan *Browser
	size     int
	launched int
	binPath  string
	headless bool
}

func NewBrowserPool(size int, binPath string, headless bool) *BrowserPool {
	if size < 1 {
		size = 1
	}
	return &BrowserPool{
		idle:     make(chan *Browser, size),
		size:     size,
		binPath:  binPath,
		headless: headless,
	}
}

// Acquire returns an idle instance, launching a new one while the pool is
// below size, otherwise blocking until an instance is returned or the context
// ends. Stale instances found on reuse are discarded and replaced.
func (p *BrowserPool) Acquire(ctx context.Context) (*Browser, error) {
	for {
		select {
		case b := <-p.idle:
			if b.healthy() {
				return b, nil
			}
			p.discard(b)
			continue
		default:
		}

		p.mu.Lock()
		if p.launched < p.size {
			p.launched++
			p.mu.Unlock()
			b, err := p.launch()
			if err != nil {
				p.mu.Lock()
				p.launched--
				p.mu.Unlock()
				return nil, types.Transient("launch browser", err)
			}
			return b, nil
		}
		p.mu.Unlock()

		select {
		case b := <-p.idle:
			if b.healthy() {
				return b, nil
			}
			p.discard(b)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Release returns an instance to the pool, closing it if the pool is already
// full.
func (p *BrowserPool) Release(b *Browser) {
	if b == nil {
		return
	}
	select {
	case p.idle <- b:
	default:
		p.discard(b)
	}
}

// Close shuts down all idle instances. Call it only after the workers have
// released theirs.
func (p *BrowserPool) Close() {
	for {
		select {
		case b := <-p.idle:
			p.discard(b)
		default:
			return
		}
	}
}

func (p *BrowserPool) discard(b *Browser) {
	b.close()
	p.mu.Lock()
	p.launched--
	p.mu.Unlock()
}

func (p *BrowserPool) launch() (*Browser, error) {
	l := launcher.New().Headless(p.headless).NoSandbox(true)
	if p.binPath != "" {
		l = l.Bin(p.binPath)
	}
	url, err := l.Launch()
	if err != nil {
		return nil, err
	}
	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, err
	}
	browserLaunches.Inc()
	return &Browser{rod: browser, launcher: l}, nil
}
