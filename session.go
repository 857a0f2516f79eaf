package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"
)

// Session owns the browser and the single order page for a whole batch.
type Session struct {
	config   *Config
	logger   *zap.Logger
	browser  *rod.Browser
	page     *rod.Page
	launcher *launcher.Launcher
}

func NewSession(config *Config, logger *zap.Logger) *Session {
	return &Session{
		config: config,
		logger: logger,
	}
}

// Close tears down the page, the browser and the launcher. It reports to the
// console only when Launch got as far as starting a browser.
func (s *Session) Close() {
	if s.browser == nil {
		if s.launcher != nil {
			// Launch failed; Cleanup would wait on a process that never ran
			s.launcher.Kill()
			s.launcher = nil
		}
		return
	}

	fmt.Println(T("cleaning_up"))
	if s.page != nil {
		_ = s.page.Close()
	}
	_ = s.browser.Close()
	if s.launcher != nil {
		s.launcher.Cleanup()
	}
	fmt.Println(T("browser_destroyed"))

	s.page, s.browser, s.launcher = nil, nil, nil
}

// isBrowserAlive reports whether the browser and the order page still answer
// CDP calls. A user closing the window makes both fail.
func (s *Session) isBrowserAlive() bool {
	if s.browser == nil {
		return false
	}

	if _, err := s.browser.Version(); err != nil {
		s.logger.Debug("Browser no longer responding", zap.Error(err))
		return false
	}

	if s.page == nil {
		return true
	}
	if _, err := s.page.Info(); err != nil {
		s.logger.Debug("Order page no longer responding", zap.Error(err))
		return false
	}
	return true
}

// Launch starts the browser and opens the order page.
func (s *Session) Launch() error {
	if err := s.setupBrowser(); err != nil {
		return err
	}
	return s.openPage()
}

func (s *Session) setupBrowser() error {
	fmt.Println(T("browser_launching"))

	// Disable leakless mode on Windows to prevent deadlock
	// See: https://github.com/go-rod/rod/issues/853
	useLeakless := runtime.GOOS != "windows"

	chromePath, chromeExists := launcher.LookPath()

	s.launcher = launcher.New().
		Leakless(useLeakless).
		Headless(s.config.Headless)

	// Must be set before Bin() to be applied
	if s.config.BrowserProfilePath != "" {
		s.launcher = s.launcher.UserDataDir(s.config.BrowserProfilePath)
		s.logger.Debug("Browser profile set", zap.String("path", s.config.BrowserProfilePath))
	}

	if chromeExists {
		s.launcher = s.launcher.Bin(chromePath)
		fmt.Println(T("browser_using_system_chrome"))
		s.logger.Debug("Chrome binary set", zap.String("path", chromePath))
	} else {
		fmt.Println(T("browser_chrome_not_found"))
	}

	url, err := s.launcher.Launch()
	if err != nil {
		errMsg := err.Error()
		if strings.Contains(errMsg, "ProcessSingleton") ||
			strings.Contains(errMsg, "SingletonLock") {
			fmt.Println(T("error_chrome_already_running_header"))
			fmt.Println(T("error_chrome_close_all"))
			return errors.New(T("error_chrome_already_running"))
		}

		if strings.Contains(errMsg, "Access is denied") || strings.Contains(errMsg, "permission denied") {
			fmt.Println(T("error_browser_download_permission"))
			fmt.Println(T("error_browser_download_chrome_url"))
			return fmt.Errorf(T("error_browser_setup_failed"), err)
		}

		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	s.browser = browser

	fmt.Println(T("browser_launched"))
	return nil
}

func (s *Session) openPage() error {
	var err error
	if s.config.Stealth {
		s.page, err = stealth.Page(s.browser)
		if err != nil {
			return fmt.Errorf("failed to create stealth page: %w", err)
		}
		s.logger.Debug("Stealth page enabled")
	} else {
		s.page, err = s.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
		if err != nil {
			return fmt.Errorf("failed to create page: %w", err)
		}
	}

	err = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             s.config.ViewportWidth,
		Height:            s.config.ViewportHeight,
		DeviceScaleFactor: 1,
	})
	if err != nil {
		s.logger.Warn("Failed to set viewport", zap.Error(err))
	}

	return nil
}

// Page returns the order page. Launch must have succeeded.
func (s *Session) Page() Page {
	return &rodPage{
		page:        s.page,
		timeout:     s.config.elementTimeout(),
		loadTimeout: secondsToDuration(s.config.PageLoadTimeout),
	}
}

// Renderer prints receipts to PDF in throwaway tabs of the same browser.
func (s *Session) Renderer() Renderer {
	return &rodRenderer{
		browser: s.browser,
		timeout: secondsToDuration(s.config.PageLoadTimeout),
	}
}

type rodPage struct {
	page        *rod.Page
	timeout     time.Duration
	loadTimeout time.Duration
}

func (p *rodPage) Navigate(ctx context.Context, url string) error {
	ctx, cancel := context.WithTimeout(ctx, p.loadTimeout)
	defer cancel()

	page := p.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page failed to load: %w", err)
	}
	return nil
}

func (p *rodPage) Has(ctx context.Context, selector string) (bool, error) {
	has, _, err := p.page.Context(ctx).Has(selector)
	return has, err
}

func (p *rodPage) WaitFor(ctx context.Context, selector string, within time.Duration) (bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, within)
	defer cancel()

	_, err := p.page.Context(waitCtx).Element(selector)
	switch {
	case err == nil:
		return true, nil
	case ctx.Err() != nil:
		return false, ctx.Err()
	case waitCtx.Err() != nil:
		return false, nil
	}
	return false, err
}

func (p *rodPage) Click(ctx context.Context, selector string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		return el.Click(proto.InputMouseButtonLeft, 1)
	})
}

func (p *rodPage) SelectOption(ctx context.Context, selector, value string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		option := fmt.Sprintf("option[value=%q]", value)
		return el.Select([]string{option}, true, rod.SelectorTypeCSSSector)
	})
}

func (p *rodPage) Fill(ctx context.Context, selector, text string) error {
	return p.withElement(ctx, selector, func(el *rod.Element) error {
		if err := el.SelectAllText(); err != nil {
			return err
		}
		return el.Input(text)
	})
}

func (p *rodPage) InnerHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		res, err := el.Eval(`() => this.innerHTML`)
		if err != nil {
			return err
		}
		html = res.Value.Str()
		return nil
	})
	return html, err
}

func (p *rodPage) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	var img []byte
	err := p.withElement(ctx, selector, func(el *rod.Element) error {
		// The preview image is swapped in after the preview click
		if err := el.WaitLoad(); err != nil {
			return err
		}
		var err error
		img, err = el.Screenshot(proto.PageCaptureScreenshotFormatPng, 0)
		return err
	})
	return img, err
}

// withElement waits for selector and runs fn while the lookup context is live.
func (p *rodPage) withElement(ctx context.Context, selector string, fn func(el *rod.Element) error) error {
	lookupCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	el, err := p.page.Context(lookupCtx).Element(selector)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %s: %v", ErrSelectorMiss, selector, err)
	}
	return fn(el)
}

type rodRenderer struct {
	browser *rod.Browser
	timeout time.Duration
}

func (r *rodRenderer) RenderPDF(ctx context.Context, html, path string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tab, err := r.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("failed to open render tab: %w", err)
	}
	defer tab.Close()

	page := tab.Context(ctx)
	if err := page.SetDocumentContent(html); err != nil {
		return fmt.Errorf("failed to load receipt markup: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("receipt markup failed to load: %w", err)
	}

	stream, err := page.PDF(&proto.PagePrintToPDF{PrintBackground: true})
	if err != nil {
		return fmt.Errorf("failed to print PDF: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := io.Copy(f, stream); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return f.Close()
}
