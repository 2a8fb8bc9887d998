package browser

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/uirun/uirun/internal/domain"
)

const (
	defaultViewportWidth  = 1280
	defaultViewportHeight = 720
)

// RodConfig controls the Chrome instance backing all sessions.
type RodConfig struct {
	Headless bool
	Width    int
	Height   int
}

// RodDriver launches a single shared Chrome and hands out isolated
// incognito pages. The browser starts lazily on the first NewPage call.
type RodDriver struct {
	cfg RodConfig

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

func NewRodDriver(cfg RodConfig) *RodDriver {
	if cfg.Width <= 0 {
		cfg.Width = defaultViewportWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = defaultViewportHeight
	}
	return &RodDriver{cfg: cfg}
}

func (d *RodDriver) ensureBrowser() (*rod.Browser, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		return d.browser, nil
	}

	l := launcher.New().Headless(d.cfg.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	d.launcher = l
	d.browser = b
	return b, nil
}

// NewPage opens a fresh incognito page with a fixed viewport.
func (d *RodDriver) NewPage(ctx context.Context) (Page, error) {
	b, err := d.ensureBrowser()
	if err != nil {
		return nil, err
	}

	incognito, err := b.Context(ctx).Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}

	page, err := incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("failed to open page: %w", err)
	}

	if err := (proto.EmulationSetDeviceMetricsOverride{
		Width:             d.cfg.Width,
		Height:            d.cfg.Height,
		DeviceScaleFactor: 1.0,
		Mobile:            false,
	}).Call(page); err != nil {
		log.Printf("WARN: failed to set viewport: %v", err)
	}

	return &rodPage{page: page}, nil
}

func (d *RodDriver) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser == nil {
		return nil
	}
	err := d.browser.Close()
	if d.launcher != nil {
		d.launcher.Cleanup()
	}
	d.browser = nil
	d.launcher = nil
	return err
}

type rodPage struct {
	page *rod.Page
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	pg := p.page.Context(ctx)
	if err := pg.Navigate(url); err != nil {
		return domain.WrapStepError(domain.ErrKindSessionUnavailable,
			fmt.Sprintf("failed to open %s", url), err)
	}
	if err := pg.WaitLoad(); err != nil {
		log.Printf("WARN: load wait for %s gave up: %v", url, err)
	}
	return nil
}

func (p *rodPage) ClickText(ctx context.Context, text string) error {
	pg := p.page.Context(ctx)

	// Prefer an element whose whole text matches. If none exists right
	// now, wait for one containing the text instead.
	el, err := pg.Sleeper(rod.NotFoundSleeper).ElementX(exactTextXPath(text))
	if err != nil {
		el, err = pg.ElementX(containsTextXPath(text))
		if err != nil {
			return domain.StepErrorf(domain.ErrKindSelectorNotFound, "text %q not found", text)
		}
	}
	return p.click(el, fmt.Sprintf("text %q", text))
}

func (p *rodPage) ClickSelector(ctx context.Context, selector string) error {
	pg := p.page.Context(ctx)

	el, err := pg.Element(selector)
	if err != nil {
		return domain.StepErrorf(domain.ErrKindSelectorNotFound, "selector %q not found", selector)
	}
	return p.click(el, fmt.Sprintf("selector %q", selector))
}

func (p *rodPage) click(el *rod.Element, target string) error {
	if err := el.ScrollIntoView(); err != nil {
		log.Printf("WARN: scroll to %s failed: %v", target, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return domain.WrapStepError(domain.ErrKindTimeout,
			fmt.Sprintf("click on %s did not complete", target), err)
	}
	return nil
}

func (p *rodPage) TypeByID(ctx context.Context, field, value string) error {
	pg := p.page.Context(ctx)

	el, err := pg.Element("#" + field)
	if err != nil {
		return domain.StepErrorf(domain.ErrKindSelectorNotFound, "field %q not found", field)
	}
	if err := el.WaitVisible(); err != nil {
		return domain.StepErrorf(domain.ErrKindSelectorNotFound, "field %q not visible", field)
	}
	if err := el.SelectAllText(); err != nil {
		return domain.WrapStepError(domain.ErrKindTimeout,
			fmt.Sprintf("could not focus field %q", field), err)
	}
	if value == "" {
		// Clear the field: select-all is already done, one key wipes it.
		if err := el.Type(input.Backspace); err != nil {
			return domain.WrapStepError(domain.ErrKindTimeout,
				fmt.Sprintf("could not clear field %q", field), err)
		}
		return nil
	}
	if err := el.Input(value); err != nil {
		return domain.WrapStepError(domain.ErrKindTimeout,
			fmt.Sprintf("could not type into field %q", field), err)
	}
	return nil
}

func (p *rodPage) WaitText(ctx context.Context, text string) error {
	pg := p.page.Context(ctx)

	el, err := pg.ElementX(containsTextXPath(text))
	if err != nil {
		return domain.StepErrorf(domain.ErrKindTimeout, "text %q did not appear", text)
	}
	if err := el.WaitVisible(); err != nil {
		return domain.StepErrorf(domain.ErrKindTimeout, "text %q did not become visible", text)
	}
	return nil
}

func (p *rodPage) AssertText(ctx context.Context, text string) error {
	pg := p.page.Context(ctx)

	el, err := pg.Sleeper(rod.NotFoundSleeper).ElementX(containsTextXPath(text))
	if err != nil {
		return domain.StepErrorf(domain.ErrKindAssertionFailed, "expected text %q not found", text)
	}
	visible, err := el.Visible()
	if err != nil || !visible {
		return domain.StepErrorf(domain.ErrKindAssertionFailed, "expected text %q not visible", text)
	}
	return nil
}

func (p *rodPage) WaitURLContains(ctx context.Context, fragment string) error {
	last := ""
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if url, _ := p.Info(ctx); url != "" {
			last = url
			if strings.Contains(url, fragment) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return domain.StepErrorf(domain.ErrKindTimeout,
				"url did not contain %q (last url %q)", fragment, last)
		case <-ticker.C:
		}
	}
}

func (p *rodPage) Screenshot(ctx context.Context) ([]byte, error) {
	pg := p.page.Context(ctx)

	bin, err := pg.Screenshot(true, &proto.PageCaptureScreenshot{
		Format:      proto.PageCaptureScreenshotFormatPng,
		FromSurface: true,
	})
	if err != nil {
		return nil, domain.WrapStepError(domain.ErrKindCaptureFailed, "screenshot failed", err)
	}
	return bin, nil
}

func (p *rodPage) Settle(ctx context.Context) {
	if err := p.page.Context(ctx).WaitStable(time.Second); err != nil {
		log.Printf("WARN: page did not settle: %v", err)
	}
}

func (p *rodPage) Info(ctx context.Context) (string, string) {
	info, err := p.page.Context(ctx).Info()
	if err != nil {
		return "", ""
	}
	return info.URL, info.Title
}

func (p *rodPage) Close(ctx context.Context) error {
	return p.page.Close()
}

// exactTextXPath matches elements whose entire normalized text equals s.
func exactTextXPath(s string) string {
	return fmt.Sprintf("//*[normalize-space(.) = %s]", xpathLiteral(s))
}

// containsTextXPath matches elements with a direct text node containing s,
// which keeps the match close to the leaf instead of the document root.
func containsTextXPath(s string) string {
	return fmt.Sprintf("//*[text()[contains(., %s)]]", xpathLiteral(s))
}

// xpathLiteral quotes s for use in an XPath 1.0 expression. Strings with
// both quote kinds need the concat form.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	var b strings.Builder
	b.WriteString("concat(")
	for i, part := range parts {
		if i > 0 {
			b.WriteString(`, "'", `)
		}
		b.WriteString("'" + part + "'")
	}
	b.WriteString(")")
	return b.String()
}
