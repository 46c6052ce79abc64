// Package browser drives a headless Chromium through go-rod for portals
// that only work behind a real page.
package browser

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JustJay7/court-case-aggregator/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// Target is something a page can wait for: the first element matching
// Selector, and when Pattern is set, whose text matches that JS regexp.
type Target struct {
	Selector string
	Pattern  string
}

// Page is the subset of page automation the portal adapters need.
type Page interface {
	Navigate(ctx context.Context, url string) error
	Input(ctx context.Context, selector, text string) error
	Click(ctx context.Context, selector string) error
	Screenshot(ctx context.Context, selector string) ([]byte, error)
	// Wait blocks until one of targets appears and returns its index.
	Wait(ctx context.Context, targets ...Target) (int, error)
	HTML(ctx context.Context, selector string) (string, error)
	Cookies(ctx context.Context) ([]*http.Cookie, error)
	Close() error
}

// Pages opens fresh pages.
type Pages interface {
	NewPage(ctx context.Context) (Page, error)
}

type Options struct {
	Headless  bool
	Bin       string
	UserAgent string
	Debug     bool
}

// Browser is one launched Chromium shared by all lookups. Each lookup gets
// its own incognito context.
type Browser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	log      *logger.Logger
}

// Launch starts Chromium and connects to it.
func Launch(opts Options, log *logger.Logger) (*Browser, error) {
	l := launcher.New().
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
	if opts.UserAgent != "" {
		l = l.Set("user-agent", opts.UserAgent)
	}
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	if opts.Debug {
		l = l.Devtools(true)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	b := rod.New().ControlURL(controlURL)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	log.Info("Browser launched", "headless", opts.Headless)
	return &Browser{launcher: l, browser: b, log: log}, nil
}

func (b *Browser) NewPage(ctx context.Context) (Page, error) {
	incognito, err := b.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to open browser context: %w", err)
	}
	p, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		_ = incognito.Close()
		return nil, fmt.Errorf("failed to open page: %w", err)
	}
	if err := p.SetViewport(&proto.EmulationSetDeviceMetricsOverride{Width: 1920, Height: 1080, DeviceScaleFactor: 1}); err != nil {
		b.log.Debug("Viewport not set", "error", err)
	}
	return &rodPage{page: p, context: incognito}, nil
}

func (b *Browser) Close() error {
	err := b.browser.Close()
	b.launcher.Kill()
	return err
}

type rodPage struct {
	page    *rod.Page
	context *rod.Browser
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return page.WaitLoad()
}

func (p *rodPage) element(ctx context.Context, selector string) (*rod.Element, error) {
	el, err := p.page.Context(ctx).Element(selector)
	if err != nil {
		return nil, fmt.Errorf("element %s not found: %w", selector, err)
	}
	return el, nil
}

func (p *rodPage) Input(ctx context.Context, selector, text string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return err
	}
	return el.Input(text)
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	el, err := p.element(ctx, selector)
	if err != nil {
		return err
	}
	return el.Click(proto.InputMouseButtonLeft, 1)
}

func (p *rodPage) Screenshot(ctx context.Context, selector string) ([]byte, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, err
	}
	return el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
}

func (p *rodPage) Wait(ctx context.Context, targets ...Target) (int, error) {
	matched := -1
	race := p.page.Context(ctx).Race()
	for i, t := range targets {
		i := i
		if t.Pattern != "" {
			race = race.ElementR(t.Selector, t.Pattern)
		} else {
			race = race.Element(t.Selector)
		}
		race = race.Handle(func(*rod.Element) error {
			matched = i
			return nil
		})
	}
	if _, err := race.Do(); err != nil {
		return -1, err
	}
	return matched, nil
}

func (p *rodPage) HTML(ctx context.Context, selector string) (string, error) {
	el, err := p.element(ctx, selector)
	if err != nil {
		return "", err
	}
	return el.HTML()
}

func (p *rodPage) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	raw, err := p.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, err
	}
	out := make([]*http.Cookie, 0, len(raw))
	for _, c := range raw {
		hc := &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		}
		if c.Expires > 0 {
			hc.Expires = c.Expires.Time()
		}
		out = append(out, hc)
	}
	return out, nil
}

func (p *rodPage) Close() error {
	err := p.page.Close()
	if cerr := p.context.Close(); err == nil {
		err = cerr
	}
	return err
}

// WaitTimeout bounds ctx for a single Wait when the caller has no deadline.
func WaitTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}
