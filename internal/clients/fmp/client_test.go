package fmp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bobmcallan/keymetrics/internal/common"
	"github.com/bobmcallan/keymetrics/internal/models"
)

func newTestServer(t *testing.T, status int, body string, captured *http.Request) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			*captured = *r
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestGetStatements_ParsesRecords(t *testing.T) {
	var req http.Request
	srv := newTestServer(t, http.StatusOK, `[
		{"date":"2024-09-28","calendarYear":"2024","totalAssets":364980000000,"totalLiabilities":308030000000},
		{"date":"2023-09-30","calendarYear":"2023","totalAssets":352583000000,"totalLiabilities":290437000000}
	]`, &req)

	client := NewClient("test-key", WithBaseURL(srv.URL))
	records, err := client.GetStatements(context.Background(), "aapl", models.StatementBalanceSheet, models.GranularityAnnual, 2)
	if err != nil {
		t.Fatalf("GetStatements failed: %v", err)
	}

	if req.URL.Path != "/balance-sheet-statement/AAPL" {
		t.Errorf("expected path /balance-sheet-statement/AAPL, got %s", req.URL.Path)
	}
	q := req.URL.Query()
	if q.Get("apikey") != "test-key" {
		t.Errorf("expected apikey test-key, got %q", q.Get("apikey"))
	}
	if q.Get("period") != "annual" || q.Get("limit") != "2" {
		t.Errorf("unexpected query %s", req.URL.RawQuery)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Date() != "2024-09-28" {
		t.Errorf("expected first date 2024-09-28, got %s", records[0].Date())
	}
	if records[1]["totalAssets"].Float() != 352583000000 {
		t.Errorf("unexpected totalAssets %v", records[1]["totalAssets"])
	}
}

func TestGetKeyMetricsAndRatios_Paths(t *testing.T) {
	tests := []struct {
		name string
		call func(c *Client) error
		path string
	}{
		{"key metrics", func(c *Client) error {
			_, err := c.GetKeyMetrics(context.Background(), "MSFT", models.GranularityQuarter, 4)
			return err
		}, "/key-metrics/MSFT"},
		{"ratios", func(c *Client) error {
			_, err := c.GetRatios(context.Background(), "MSFT", models.GranularityQuarter, 4)
			return err
		}, "/financial-ratios/MSFT"},
		{"estimates", func(c *Client) error {
			_, err := c.GetEstimates(context.Background(), "MSFT", 0)
			return err
		}, "/analyst-estimates/MSFT"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var req http.Request
			srv := newTestServer(t, http.StatusOK, `[]`, &req)
			client := NewClient("k", WithBaseURL(srv.URL))
			if err := tt.call(client); err != nil {
				t.Fatalf("call failed: %v", err)
			}
			if req.URL.Path != tt.path {
				t.Errorf("expected path %s, got %s", tt.path, req.URL.Path)
			}
		})
	}
}

func TestGetEstimates_DefaultLimit(t *testing.T) {
	var req http.Request
	srv := newTestServer(t, http.StatusOK, `[]`, &req)
	client := NewClient("k", WithBaseURL(srv.URL))

	if _, err := client.GetEstimates(context.Background(), "MSFT", 0); err != nil {
		t.Fatalf("GetEstimates failed: %v", err)
	}
	if req.URL.Query().Get("limit") != "30" || req.URL.Query().Get("period") != "annual" {
		t.Errorf("unexpected query %s", req.URL.RawQuery)
	}
}

func TestGetQuote_UnwrapsArray(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[{"symbol":"AAPL","price":150.5,"eps":"6.1","sharesOutstanding":15000000000}]`, nil)
	client := NewClient("k", WithBaseURL(srv.URL))

	quote, err := client.GetQuote(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("GetQuote failed: %v", err)
	}
	if quote["price"].Float() != 150.5 {
		t.Errorf("expected price 150.5, got %v", quote["price"])
	}
}

func TestGetQuote_EmptyArrayIsUpstreamError(t *testing.T) {
	srv := newTestServer(t, http.StatusOK, `[]`, nil)
	client := NewClient("k", WithBaseURL(srv.URL))

	_, err := client.GetQuote(context.Background(), "NOPE")
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestClient_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, `{"error":"boom"}`},
		{"unauthorized", http.StatusUnauthorized, `{"Error Message":"Invalid API KEY."}`},
		{"error message on 200", http.StatusOK, `{"Error Message":"Limit Reach"}`},
		{"malformed json", http.StatusOK, `[{"date":`},
		{"object instead of array", http.StatusOK, `{"date":"2024-01-01"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.status, tt.body, nil)
			client := NewClient("k", WithBaseURL(srv.URL))

			_, err := client.GetKeyMetrics(context.Background(), "AAPL", models.GranularityAnnual, 1)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, common.ErrUpstreamUnavailable) {
				t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Errorf("expected *APIError, got %T", err)
			}
		})
	}
}

func TestClient_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithTimeout(20*time.Millisecond))
	_, err := client.GetRatios(context.Background(), "AAPL", models.GranularityAnnual, 1)
	if !errors.Is(err, common.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestGetStatements_UnknownType(t *testing.T) {
	client := NewClient("k")
	_, err := client.GetStatements(context.Background(), "AAPL", models.StatementType("profile"), models.GranularityAnnual, 1)
	if !errors.Is(err, common.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}
