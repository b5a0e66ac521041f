// Package browser drives a remote WebDriver hub for portals that need a
// real browser.
package browser

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"
	"go.uber.org/zap"

	"TenderScanner/internal/ports"
)

// ErrUnavailable means no browser session could be obtained.
var ErrUnavailable = eris.New("browser session unavailable")

// Options configures the remote hub connection.
type Options struct {
	HubURL          string
	PageLoadTimeout time.Duration
	ImplicitWait    time.Duration
	UserAgent       string
}

// Dialer opens a WebDriver; selenium.NewRemote in production.
type Dialer func(caps selenium.Capabilities, hubURL string) (selenium.WebDriver, error)

// Provider hands out sessions against one hub.
type Provider struct {
	opts   Options
	dial   Dialer
	logger *zap.Logger
}

var _ ports.BrowserProvider = (*Provider)(nil)

// NewProvider builds a provider. A nil dialer uses selenium.NewRemote.
func NewProvider(opts Options, dial Dialer, logger *zap.Logger) *Provider {
	if opts.HubURL == "" {
		opts.HubURL = "http://localhost:4444/wd/hub"
	}
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = 30 * time.Second
	}
	if opts.ImplicitWait <= 0 {
		opts.ImplicitWait = 10 * time.Second
	}
	if dial == nil {
		dial = selenium.NewRemote
	}
	if logger == nil {
		logger = zap.L()
	}
	return &Provider{opts: opts, dial: dial, logger: logger.With(zap.String("component", "browser"))}
}

func (p *Provider) capabilities() selenium.Capabilities {
	args := []string{
		"--no-sandbox",
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--window-size=1920,1080",
		"--disable-blink-features=AutomationControlled",
	}
	if p.opts.UserAgent != "" {
		args = append(args, "--user-agent="+p.opts.UserAgent)
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Args:            args,
		ExcludeSwitches: []string{"enable-automation"},
	})
	return caps
}

// Acquire opens a session. Failures wrap ErrUnavailable.
func (p *Provider) Acquire(ctx context.Context) (ports.BrowserSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	wd, err := p.dial(p.capabilities(), p.opts.HubURL)
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "connect %s: %v", p.opts.HubURL, err)
	}
	if err := wd.SetPageLoadTimeout(p.opts.PageLoadTimeout); err != nil {
		_ = wd.Quit()
		return nil, eris.Wrapf(ErrUnavailable, "set page load timeout: %v", err)
	}
	if err := wd.SetImplicitWaitTimeout(p.opts.ImplicitWait); err != nil {
		_ = wd.Quit()
		return nil, eris.Wrapf(ErrUnavailable, "set implicit wait: %v", err)
	}

	p.logger.Info("browser session opened", zap.String("hub", p.opts.HubURL))
	return &Session{wd: wd, logger: p.logger}, nil
}

// Session is one WebDriver session. Close is idempotent.
type Session struct {
	wd     selenium.WebDriver
	logger *zap.Logger
	once   sync.Once
	err    error
}

// Navigate loads url.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "navigate")
	}
	if err := s.wd.Get(url); err != nil {
		return eris.Wrapf(err, "navigate %s", url)
	}
	return nil
}

// WaitFor blocks until an element matching css exists or timeout passes.
func (s *Session) WaitFor(ctx context.Context, css string, timeout time.Duration) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "wait")
	}
	cond := func(wd selenium.WebDriver) (bool, error) {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		_, err := wd.FindElement(selenium.ByCSSSelector, css)
		return err == nil, nil
	}
	if err := s.wd.WaitWithTimeout(cond, timeout); err != nil {
		return eris.Wrapf(err, "wait for %q", css)
	}
	return nil
}

// PageSource returns the current DOM as HTML.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", eris.Wrap(err, "page source")
	}
	src, err := s.wd.PageSource()
	if err != nil {
		return "", eris.Wrap(err, "page source")
	}
	return src, nil
}

// Close quits the remote session.
func (s *Session) Close() error {
	s.once.Do(func() {
		if err := s.wd.Quit(); err != nil {
			s.err = eris.Wrap(err, "quit browser")
			return
		}
		s.logger.Info("browser session closed")
	})
	return s.err
}
