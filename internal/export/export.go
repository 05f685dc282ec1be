// Package export prints rendered dashboard pages to PDF with headless
// Chrome.
package export

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/truthinlistings/dashboard/internal/logging"
)

// Renderer turns a standalone HTML document into a PDF.
type Renderer interface {
	RenderPDF(ctx context.Context, html []byte) ([]byte, error)
}

// ErrDisabled is returned by a Renderer that was not configured.
var ErrDisabled = errors.New("PDF export is disabled")

// Config controls the headless browser.
type Config struct {
	// ChromeBin overrides the Chrome executable; empty means search PATH.
	ChromeBin string
	// Timeout bounds one render.
	Timeout time.Duration
}

// DefaultTimeout bounds a render when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// ChromeRenderer renders through headless Chrome. The browser is launched
// lazily on the first render.
type ChromeRenderer struct {
	cfg    Config
	logger logging.Logger

	once        sync.Once
	allocCtx    context.Context
	cancelAlloc context.CancelFunc
}

func NewChromeRenderer(cfg Config, logger logging.Logger) *ChromeRenderer {
	if logger == nil {
		logger = logging.Nop{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &ChromeRenderer{
		cfg:    cfg,
		logger: logger.With(logging.Field{Key: "component", Value: "export"}),
	}
}

func (c *ChromeRenderer) allocator() context.Context {
	c.once.Do(func() {
		opts := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
		)
		if c.cfg.ChromeBin != "" {
			opts = append(opts, chromedp.ExecPath(c.cfg.ChromeBin))
		}
		c.allocCtx, c.cancelAlloc = chromedp.NewExecAllocator(context.Background(), opts...)
	})
	return c.allocCtx
}

// RenderPDF loads html into a blank tab and prints it on A4 with
// backgrounds, so the risk colours survive.
func (c *ChromeRenderer) RenderPDF(ctx context.Context, html []byte) ([]byte, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.allocator(), chromedp.WithLogf(func(string, ...any) {}))
	defer cancelTab()
	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, c.cfg.Timeout)
	defer cancelTimeout()

	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	start := time.Now()
	var pdf []byte
	err := chromedp.Run(tabCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, string(html)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				Do(ctx)
			pdf = buf
			return err
		}),
	)
	if err != nil {
		c.logger.Warn("pdf render failed", logging.Err(err))
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	c.logger.Info("rendered pdf",
		logging.Field{Key: "bytes", Value: len(pdf)},
		logging.Field{Key: "elapsed", Value: time.Since(start).String()})
	return pdf, nil
}

// Close stops the browser if one was started.
func (c *ChromeRenderer) Close() {
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
}

// Disabled is a Renderer that always fails with ErrDisabled.
type Disabled struct{}

func (Disabled) RenderPDF(context.Context, []byte) ([]byte, error) { return nil, ErrDisabled }
