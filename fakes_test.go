package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSite simulates the order page: a modal shown on every fresh form, the
// four form fields, an order button that fails a configurable number of times,
// and the confirmation view.
type fakeSite struct {
	mu  sync.Mutex
	sel SelectorConfig

	navigated    []string
	modalShown   bool
	head         string
	body         string
	legs         string
	address      string
	previewed    bool
	alertShown   bool
	confirmed    bool
	failuresLeft int

	// modalDelay hides the modal from Has; WaitFor sees it once within
	// reaches the delay.
	modalDelay time.Duration

	orderClicks   int
	modalClicks   int
	failClick     string
	missing       map[string]bool
	calls         []string
	receiptSerial int
}

func newFakeSite(failures int) *fakeSite {
	return &fakeSite{
		sel:          DefaultConfig().Selectors,
		modalShown:   true,
		failuresLeft: failures,
		missing:      map[string]bool{},
	}
}

func (s *fakeSite) record(call string) {
	s.calls = append(s.calls, call)
}

func (s *fakeSite) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("navigate")
	s.navigated = append(s.navigated, url)
	return nil
}

func (s *fakeSite) Has(ctx context.Context, selector string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch selector {
	case s.sel.ModalDismissButton:
		return s.modalShown && s.modalDelay == 0, nil
	case s.sel.ErrorAlert:
		return s.alertShown, nil
	case s.sel.Receipt, s.sel.OrderAnotherButton:
		return s.confirmed, nil
	}
	return false, nil
}

func (s *fakeSite) WaitFor(ctx context.Context, selector string, within time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	late := selector == s.sel.ModalDismissButton && s.modalShown && s.modalDelay > 0
	s.mu.Unlock()
	if late {
		return within >= s.modalDelay, nil
	}
	return s.Has(ctx, selector)
}

func (s *fakeSite) Click(ctx context.Context, selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("click " + selector)

	if selector == s.failClick || s.missing[selector] {
		return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}

	switch {
	case selector == s.sel.ModalDismissButton:
		if !s.modalShown {
			return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
		}
		s.modalShown = false
		s.modalClicks++
	case s.modalShown:
		return fmt.Errorf("click on %s intercepted by modal", selector)
	case strings.HasPrefix(selector, s.sel.BodyRadioPrefix):
		s.body = strings.TrimPrefix(selector, s.sel.BodyRadioPrefix)
	case selector == s.sel.PreviewButton:
		s.previewed = true
	case selector == s.sel.OrderButton:
		if s.confirmed {
			return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
		}
		s.orderClicks++
		if s.failuresLeft > 0 {
			s.failuresLeft--
			s.alertShown = true
			return nil
		}
		s.alertShown = false
		s.confirmed = true
		s.receiptSerial++
	case selector == s.sel.OrderAnotherButton:
		if !s.confirmed {
			return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
		}
		s.confirmed = false
		s.previewed = false
		s.head, s.body, s.legs, s.address = "", "", "", ""
		s.modalShown = true
	default:
		return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	return nil
}

func (s *fakeSite) SelectOption(ctx context.Context, selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("select " + selector)
	if s.modalShown {
		return fmt.Errorf("select on %s intercepted by modal", selector)
	}
	if selector != s.sel.HeadSelect {
		return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	s.head = value
	return nil
}

func (s *fakeSite) Fill(ctx context.Context, selector, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("fill " + selector)
	if s.modalShown {
		return fmt.Errorf("input on %s intercepted by modal", selector)
	}
	switch selector {
	case s.sel.LegsInput:
		s.legs = text
	case s.sel.AddressInput:
		s.address = text
	default:
		return fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	return nil
}

func (s *fakeSite) InnerHTML(ctx context.Context, selector string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("html " + selector)
	if selector != s.sel.Receipt || !s.confirmed || s.missing[selector] {
		return "", fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	return fmt.Sprintf(`<h3>Receipt</h3><div>2026-10-19T10:00:00Z</div>`+
		`<p class="badge badge-success">RSB-ROBO-ORDER-%04d</p><p>%s</p>`+
		`<div id="parts" class="alert alert-light"><div>Head: %s</div><div>Body: %s</div><div>Legs: %s</div></div>`+
		`<p>Thank you for your order!</p>`, s.receiptSerial, s.address, s.head, s.body, s.legs), nil
}

func (s *fakeSite) ScreenshotElement(ctx context.Context, selector string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record("screenshot " + selector)
	if selector != s.sel.RobotPreviewImage || !s.previewed || s.missing[selector] {
		return nil, fmt.Errorf("%w: %s", ErrSelectorMiss, selector)
	}
	return testPNG(nil), nil
}

// fakeRenderer produces a one-page PDF per call without a browser.
type fakeRenderer struct {
	t     *testing.T
	htmls []string
	err   error
}

func (r *fakeRenderer) RenderPDF(ctx context.Context, html, path string) error {
	if r.err != nil {
		return r.err
	}
	r.htmls = append(r.htmls, html)
	writeSinglePagePDF(r.t, path)
	return nil
}

func testPNG(t *testing.T) []byte {
	img := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for x := 0; x < 40; x++ {
		for y := 0; y < 40; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(y * 6), B: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil && t != nil {
		t.Fatalf("failed to encode PNG: %v", err)
	}
	return buf.Bytes()
}

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, testPNG(t), 0644))
}

func writeSinglePagePDF(t *testing.T, path string) {
	t.Helper()
	img := filepath.Join(t.TempDir(), "page.png")
	writeTestPNG(t, img)
	api.DisableConfigDir()
	require.NoError(t, api.ImportImagesFile([]string{img}, path, pdfcpu.DefaultImportConfig(), model.NewDefaultConfiguration()))
}

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func fastPolicy(maxAttempts int) FormPolicy {
	return FormPolicy{MaxAttempts: maxAttempts, Timeout: 0}
}
