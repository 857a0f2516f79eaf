package main

import "path/filepath"

// ArtifactPaths maps an order number to the files generated for it. The file
// system layout is the only index between an order and its artifacts.
type ArtifactPaths struct {
	ReceiptsDir    string
	ScreenshotsDir string
}

// ReceiptPath returns the receipt PDF path for an order.
func (p ArtifactPaths) ReceiptPath(orderNumber string) string {
	return filepath.Join(p.ReceiptsDir, "Robot_receipt_order_number_"+orderNumber+".pdf")
}

// ScreenshotPath returns the robot preview PNG path for an order. Unlike
// receipts there is no separator before the order number.
func (p ArtifactPaths) ScreenshotPath(orderNumber string) string {
	return filepath.Join(p.ScreenshotsDir, "Robot_screenshot_order_number"+orderNumber+".png")
}
