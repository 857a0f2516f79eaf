package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Column names of the orders table. Lookups are by exact header text.
const (
	ColumnOrderNumber = "Order number"
	ColumnHead        = "Head"
	ColumnBody        = "Body"
	ColumnLegs        = "Legs"
	ColumnAddress     = "Address"
)

var requiredColumns = []string{ColumnOrderNumber, ColumnHead, ColumnBody, ColumnLegs, ColumnAddress}

var ErrMissingColumn = errors.New("orders table is missing a required column")

// Order is one row of the orders table keyed by column name.
type Order map[string]string

func (o Order) Number() string  { return o[ColumnOrderNumber] }
func (o Order) Head() string    { return o[ColumnHead] }
func (o Order) Body() string    { return o[ColumnBody] }
func (o Order) Legs() string    { return o[ColumnLegs] }
func (o Order) Address() string { return o[ColumnAddress] }

// OrderSource downloads the orders table and parses it.
type OrderSource struct {
	client *http.Client
	url    string
	target string
}

func NewOrderSource(url, target string, timeout time.Duration) *OrderSource {
	return &OrderSource{
		client: &http.Client{Timeout: timeout},
		url:    url,
		target: target,
	}
}

// GetOrders fetches the table, overwriting any earlier download, and parses it.
func (s *OrderSource) GetOrders(ctx context.Context) ([]Order, error) {
	if err := s.Fetch(ctx); err != nil {
		return nil, err
	}
	return s.Load()
}

// Fetch downloads the table to the target path. Nothing is written unless the
// whole body was received.
func (s *OrderSource) Fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download orders: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("orders download returned HTTP %d: %s", resp.StatusCode, s.url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read orders body: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.target), 0755); err != nil {
		return err
	}
	return os.WriteFile(s.target, body, 0644)
}

// Load parses the previously downloaded table.
func (s *OrderSource) Load() ([]Order, error) {
	f, err := os.Open(s.target)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	orders, err := ParseOrders(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", s.target, err)
	}
	return orders, nil
}

// ParseOrders reads a CSV table with a header row. Row order is preserved.
func ParseOrders(r io.Reader) ([]Order, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty orders table")
	}
	if err != nil {
		return nil, err
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}

	present := make(map[string]bool, len(header))
	for _, name := range header {
		present[name] = true
	}
	for _, name := range requiredColumns {
		if !present[name] {
			return nil, fmt.Errorf("%w: %q", ErrMissingColumn, name)
		}
	}

	var orders []Order
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		order := make(Order, len(header))
		for i, name := range header {
			order[name] = row[i]
		}
		orders = append(orders, order)
	}

	return orders, nil
}
