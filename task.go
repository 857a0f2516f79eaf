package main

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// OrderResult records the artifacts produced for one order.
type OrderResult struct {
	OrderNumber      string
	ReceiptPath      string
	ScreenshotPath   string
	ConfirmationCode string
	SubmitAttempts   int
	PageCount        int
}

// BatchResult is the outcome of a fully successful run.
type BatchResult struct {
	RunID       string
	Orders      []OrderResult
	ArchivePath string
	Archived    []string
}

// OrderRobotsTask places every order from the orders table through one page
// and archives the receipts. It is built once and owns the page for the run.
type OrderRobotsTask struct {
	config    *Config
	source    *OrderSource
	page      Page
	assembler *DocumentAssembler
	paths     ArtifactPaths
	logger    *zap.Logger
}

func NewOrderRobotsTask(config *Config, page Page, renderer Renderer, logger *zap.Logger) *OrderRobotsTask {
	return &OrderRobotsTask{
		config:    config,
		source:    NewOrderSource(config.OrdersCSVURL, config.DownloadPath, secondsToDuration(config.DownloadTimeout)),
		page:      page,
		assembler: NewDocumentAssembler(renderer),
		paths:     config.Paths(),
		logger:    logger,
	}
}

// Run executes the batch. Any failure aborts it; the archive is only written
// when every order succeeded.
func (t *OrderRobotsTask) Run(ctx context.Context) (*BatchResult, error) {
	result := &BatchResult{RunID: uuid.NewString()}
	logger := t.logger.With(zap.String("run_id", result.RunID))

	fmt.Printf(T("orders_downloading")+"\n", t.config.OrdersCSVURL)
	orders, err := t.source.GetOrders(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get orders: %w", err)
	}
	fmt.Printf(T("orders_loaded")+"\n", len(orders))
	logger.Info("Orders loaded", zap.Int("count", len(orders)), zap.String("path", t.config.DownloadPath))

	fmt.Printf(T("opening_order_site")+"\n", t.config.OrderSiteURL)
	if err := t.page.Navigate(ctx, t.config.OrderSiteURL); err != nil {
		return nil, err
	}

	form := NewOrderForm(t.page, t.config.Selectors, t.config.formPolicy(), logger)
	for i, order := range orders {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		fmt.Printf(T("order_progress")+"\n", i+1, len(orders), order.Number())
		var orderResult OrderResult
		form, orderResult, err = t.placeOrder(ctx, form, order)
		if err != nil {
			return nil, fmt.Errorf("order %s: %w", order.Number(), err)
		}
		result.Orders = append(result.Orders, orderResult)

		logger.Info("Order completed",
			zap.String("order", orderResult.OrderNumber),
			zap.String("confirmation", orderResult.ConfirmationCode),
			zap.Int("submit_attempts", orderResult.SubmitAttempts),
			zap.String("receipt", orderResult.ReceiptPath))
	}

	fmt.Println(T("archiving_receipts"))
	archived, err := ArchiveDirectory(ctx, t.config.ReceiptsDir, t.config.ArchivePath)
	if err != nil {
		return nil, fmt.Errorf("failed to archive receipts: %w", err)
	}
	result.ArchivePath = t.config.ArchivePath
	result.Archived = archived
	logger.Info("Receipts archived", zap.String("archive", result.ArchivePath), zap.Int("files", len(archived)))

	return result, nil
}

func (t *OrderRobotsTask) placeOrder(ctx context.Context, form *OrderForm, order Order) (*OrderForm, OrderResult, error) {
	res := OrderResult{OrderNumber: order.Number()}

	if err := form.DismissModal(ctx); err != nil {
		return nil, res, err
	}

	filled, err := form.Fill(ctx, order)
	if err != nil {
		return nil, res, err
	}

	confirmed, err := filled.Submit(ctx)
	if err != nil {
		return nil, res, err
	}
	res.SubmitAttempts = confirmed.Attempts()

	receipt, err := confirmed.CaptureReceipt(ctx, t.paths)
	if err != nil {
		return nil, res, err
	}
	res.ScreenshotPath = receipt.ScreenshotPath
	res.ConfirmationCode = receipt.Details.ConfirmationCode

	res.ReceiptPath = t.paths.ReceiptPath(order.Number())
	if err := t.assembler.CreateReceiptPDF(ctx, order, receipt.HTML, res.ReceiptPath); err != nil {
		return nil, res, err
	}

	res.PageCount, err = t.assembler.EmbedScreenshot(receipt.ScreenshotPath, res.ReceiptPath)
	if err != nil {
		return nil, res, err
	}

	next, err := receipt.OrderAnother(ctx)
	if err != nil {
		return nil, res, err
	}
	return next, res, nil
}
