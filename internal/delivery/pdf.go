package delivery

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/Riboost-Studio/label-print-agent/internal/model"
	"github.com/Riboost-Studio/label-print-agent/internal/templates"
)

// A5 in inches.
const (
	a5Width  = 5.83
	a5Height = 8.27
)

// ChromeRenderer prints HTML to PDF with headless Chrome.
type ChromeRenderer struct {
	ExecPath string
	Timeout  time.Duration
}

func (r ChromeRenderer) RenderPDF(ctx context.Context, doc *model.StructuredDocument) ([]byte, error) {
	html, err := templates.DocumentHTML(doc)
	if err != nil {
		return nil, err
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
	)
	if r.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	defer allocCancel()
	cdpCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	if r.Timeout > 0 {
		var timeoutCancel context.CancelFunc
		cdpCtx, timeoutCancel = context.WithTimeout(cdpCtx, r.Timeout)
		defer timeoutCancel()
	}

	var pdf []byte
	err = chromedp.Run(cdpCtx,
		chromedp.Navigate("data:text/html,"+urlEncode(string(html))),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().
				WithPaperWidth(a5Width).
				WithPaperHeight(a5Height).
				WithPrintBackground(true).
				WithPreferCSSPageSize(true).
				Do(ctx)
			if err != nil {
				return err
			}
			pdf = buf
			return nil
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed generating pdf: %w", err)
	}
	return pdf, nil
}

// PDFChain tries each renderer in order and returns the first PDF produced.
type PDFChain []PDFRenderer

func (c PDFChain) RenderPDF(ctx context.Context, doc *model.StructuredDocument) ([]byte, error) {
	var errs []error
	for _, r := range c {
		pdf, err := r.RenderPDF(ctx, doc)
		if err == nil {
			return pdf, nil
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return nil, errPDFUnavailable
	}
	return nil, errors.Join(errs...)
}

// Helper for encoding HTML into a data URL
func urlEncode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}
