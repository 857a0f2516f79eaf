package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ordersCSV = `Order number,Head,Body,Legs,Address
1,1,2,3,Address 123
2,5,6,4,"Mountain View, 42"
14,3,1,5,Street 14
`

func TestParseOrders(t *testing.T) {
	orders, err := ParseOrders(strings.NewReader(ordersCSV))
	require.NoError(t, err)
	require.Len(t, orders, 3)

	assert.Equal(t, "1", orders[0].Number())
	assert.Equal(t, "1", orders[0].Head())
	assert.Equal(t, "2", orders[0].Body())
	assert.Equal(t, "3", orders[0].Legs())
	assert.Equal(t, "Address 123", orders[0].Address())

	assert.Equal(t, "Mountain View, 42", orders[1].Address())
	assert.Equal(t, "14", orders[2].Number())
}

func TestParseOrdersKeepsExtraColumns(t *testing.T) {
	csv := "Order number,Head,Body,Legs,Address,Notes\n3,1,1,1,Here,fragile\n"
	orders, err := ParseOrders(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "fragile", orders[0]["Notes"])
}

func TestParseOrdersStripsBOM(t *testing.T) {
	orders, err := ParseOrders(strings.NewReader("\ufeff" + ordersCSV))
	require.NoError(t, err)
	assert.Equal(t, "1", orders[0].Number())
}

func TestParseOrdersErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{name: "empty table", input: ""},
		{name: "missing column", input: "Order number,Head,Body,Legs\n1,1,1,1\n", wantErr: ErrMissingColumn},
		{name: "ragged row", input: "Order number,Head,Body,Legs,Address\n1,1,1\n"},
		{name: "unterminated quote", input: "Order number,Head,Body,Legs,Address\n1,1,1,1,\"open\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOrders(strings.NewReader(tt.input))
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			}
		})
	}
}

func TestOrderSourceGetOrdersOverwrites(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/csv")
		w.Write([]byte(ordersCSV))
	}))
	defer server.Close()

	target := filepath.Join(t.TempDir(), "downloads", "orders.csv")
	require.NoError(t, os.MkdirAll(filepath.Dir(target), 0755))
	require.NoError(t, os.WriteFile(target, []byte("stale"), 0644))

	source := NewOrderSource(server.URL+"/orders.csv", target, 5*time.Second)
	orders, err := source.GetOrders(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 3)

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, ordersCSV, string(data))
}

func TestOrderSourceFetchFailureWritesNothing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	target := filepath.Join(dir, "downloads", "orders.csv")

	source := NewOrderSource(server.URL, target, 5*time.Second)
	_, err := source.GetOrders(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 404")

	_, err = os.Stat(filepath.Join(dir, "downloads"))
	assert.True(t, os.IsNotExist(err))
}

func TestOrderSourceUnreachable(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	source := NewOrderSource(url, filepath.Join(t.TempDir(), "orders.csv"), time.Second)
	require.Error(t, source.Fetch(context.Background()))
}
