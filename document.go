package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"os"
	"path/filepath"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var ErrPageCountUnchanged = errors.New("screenshot page was not appended")

func init() {
	// pdfcpu would otherwise create a config directory under the user's home
	api.DisableConfigDir()
}

var receiptTemplate = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Robot receipt {{.Number}}</title>
<style>
body { font-family: sans-serif; margin: 2em; }
.badge { font-weight: bold; }
#parts { margin: 1em 0; }
</style>
</head>
<body>
{{.Receipt}}
</body>
</html>
`))

// DocumentAssembler turns receipt markup into a PDF and appends screenshots.
type DocumentAssembler struct {
	renderer Renderer
	conf     *model.Configuration
}

func NewDocumentAssembler(renderer Renderer) *DocumentAssembler {
	return &DocumentAssembler{
		renderer: renderer,
		conf:     model.NewDefaultConfiguration(),
	}
}

// CreateReceiptPDF renders the receipt markup for order into a new PDF at path.
func (d *DocumentAssembler) CreateReceiptPDF(ctx context.Context, order Order, receiptHTML, path string) error {
	var buf bytes.Buffer
	err := receiptTemplate.Execute(&buf, struct {
		Number  string
		Receipt template.HTML
	}{order.Number(), template.HTML(receiptHTML)})
	if err != nil {
		return fmt.Errorf("failed to build receipt document: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := d.renderer.RenderPDF(ctx, buf.String(), path); err != nil {
		return fmt.Errorf("failed to render receipt PDF: %w", err)
	}
	return requireNonEmpty(path)
}

// EmbedScreenshot appends the image as a new page of the PDF and returns the
// resulting page count.
func (d *DocumentAssembler) EmbedScreenshot(imagePath, pdfPath string) (int, error) {
	before, err := PageCount(pdfPath)
	if err != nil {
		return 0, err
	}

	if err := api.ImportImagesFile([]string{imagePath}, pdfPath, pdfcpu.DefaultImportConfig(), d.conf); err != nil {
		return 0, fmt.Errorf("failed to embed screenshot: %w", err)
	}

	after, err := PageCount(pdfPath)
	if err != nil {
		return 0, err
	}
	if after <= before {
		return after, fmt.Errorf("%w: %s has %d pages", ErrPageCountUnchanged, pdfPath, after)
	}
	return after, requireNonEmpty(pdfPath)
}

// PageCount returns the number of pages in a PDF file.
func PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return n, nil
}

func requireNonEmpty(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.Size() == 0 {
		return fmt.Errorf("%s is empty", path)
	}
	return nil
}
