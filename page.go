package main

import (
	"context"
	"errors"
	"time"
)

var ErrSelectorMiss = errors.New("expected element not found")

// Page is the browser surface the order workflow drives. Element actions wait
// for the element up to the session's element timeout.
type Page interface {
	Navigate(ctx context.Context, url string) error
	// Has reports whether selector matches right now, without waiting.
	Has(ctx context.Context, selector string) (bool, error)
	// WaitFor waits up to within for selector to match. A timeout is not an
	// error; it reports false.
	WaitFor(ctx context.Context, selector string, within time.Duration) (bool, error)
	Click(ctx context.Context, selector string) error
	SelectOption(ctx context.Context, selector, value string) error
	Fill(ctx context.Context, selector, text string) error
	InnerHTML(ctx context.Context, selector string) (string, error)
	ScreenshotElement(ctx context.Context, selector string) ([]byte, error)
}

// Renderer turns an HTML document into a PDF file at path.
type Renderer interface {
	RenderPDF(ctx context.Context, html, path string) error
}
