package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// CapturedReceipt is what the confirmation view yields before the form is reset.
type CapturedReceipt struct {
	stateGuard
	d              *formDriver
	Order          Order
	HTML           string
	ScreenshotPath string
	Details        ReceiptDetails
}

// ReceiptDetails are the fields shown on the site's confirmation receipt.
type ReceiptDetails struct {
	ConfirmationCode string
	Timestamp        string
	Address          string
	Parts            []string
}

// CaptureReceipt reads the receipt markup and saves a PNG of the robot preview.
func (c *ConfirmedOrder) CaptureReceipt(ctx context.Context, paths ArtifactPaths) (*CapturedReceipt, error) {
	if err := c.use(); err != nil {
		return nil, err
	}

	sel := c.d.selectors
	html, err := c.d.page.InnerHTML(ctx, sel.Receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	img, err := c.d.page.ScreenshotElement(ctx, sel.RobotPreviewImage)
	if err != nil {
		return nil, fmt.Errorf("failed to screenshot robot: %w", err)
	}

	screenshotPath := paths.ScreenshotPath(c.order.Number())
	if err := os.MkdirAll(filepath.Dir(screenshotPath), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(screenshotPath, img, 0644); err != nil {
		return nil, fmt.Errorf("failed to save screenshot: %w", err)
	}

	details, err := ParseReceipt(html)
	if err != nil {
		c.d.logger.Warn("Could not parse receipt markup", zap.String("order", c.order.Number()), zap.Error(err))
	}

	return &CapturedReceipt{
		d:              c.d,
		Order:          c.order,
		HTML:           html,
		ScreenshotPath: screenshotPath,
		Details:        details,
	}, nil
}

// OrderAnother leaves the confirmation view and returns an empty form.
func (r *CapturedReceipt) OrderAnother(ctx context.Context) (*OrderForm, error) {
	if err := r.use(); err != nil {
		return nil, err
	}
	if err := r.d.page.Click(ctx, r.d.selectors.OrderAnotherButton); err != nil {
		return nil, fmt.Errorf("failed to start another order: %w", err)
	}
	return &OrderForm{d: r.d}, nil
}

// ParseReceipt pulls the confirmation fields out of the receipt markup. The
// receipt lists timestamp, badge, address and a parts block in that order.
func ParseReceipt(html string) (ReceiptDetails, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ReceiptDetails{}, err
	}

	var details ReceiptDetails
	details.ConfirmationCode = strings.TrimSpace(doc.Find(".badge").First().Text())

	doc.Find("#parts div").Each(func(_ int, s *goquery.Selection) {
		if part := strings.TrimSpace(s.Text()); part != "" {
			details.Parts = append(details.Parts, part)
		}
	})

	doc.Find("body > div").Not("#parts").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		details.Timestamp = strings.TrimSpace(s.Text())
		return details.Timestamp == ""
	})

	doc.Find("body > p").Not(".badge").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		details.Address = strings.TrimSpace(s.Text())
		return details.Address == ""
	})

	if details.ConfirmationCode == "" {
		return details, fmt.Errorf("no confirmation code in receipt")
	}
	return details, nil
}
