package metals

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"marketdata/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	c := New("test-key", testLogger())
	c.baseURL = server.URL
	return c
}

func TestGetAssetPriceInvertsRate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("access_key"); got != "test-key" {
			t.Errorf("access_key = %q", got)
		}
		if got := r.URL.Query().Get("base"); got != "USD" {
			t.Errorf("base = %q", got)
		}
		w.Write([]byte(`{"success":true,"timestamp":1710504000,"rates":{"USDXAU":0.00043478}}`))
	})

	price, err := c.GetAssetPrice(context.Background(), "XAU")
	if err != nil {
		t.Fatal(err)
	}
	if price.Symbol != "XAU" || price.Name != "Gold" {
		t.Errorf("got %s/%s", price.Symbol, price.Name)
	}
	if price.Type != models.TypeCommodity {
		t.Errorf("type = %q", price.Type)
	}
	want := 1 / 0.00043478
	if math.Abs(price.Price-want) > 0.01 {
		t.Errorf("price = %v, want %v (inverted rate)", price.Price, want)
	}
}

func TestBareSymbolRateKey(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"rates":{"XAG":0.035}}`))
	})

	price, err := c.GetAssetPrice(context.Background(), "XAG")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(price.Price-1/0.035) > 0.01 {
		t.Errorf("price = %v", price.Price)
	}
}

func TestQuotaErrorIsRateLimit(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"code":104,"info":"monthly usage limit reached"}}`))
	})

	_, err := c.GetAssetPrice(context.Background(), "XAU")
	if !c.IsRateLimitError(err) {
		t.Errorf("quota error not detected as rate limit: %v", err)
	}
}

func TestOtherUpstreamError(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":{"code":101,"info":"invalid access key"}}`))
	})

	_, err := c.GetAssetPrice(context.Background(), "XAU")
	if err == nil {
		t.Fatal("expected error")
	}
	if c.IsRateLimitError(err) {
		t.Error("auth error misread as rate limit")
	}
}

func TestMissingRate(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true,"rates":{}}`))
	})

	if _, err := c.GetAssetPrice(context.Background(), "XPT"); err == nil {
		t.Fatal("expected error for missing rate")
	}
}
