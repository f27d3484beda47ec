package intake

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func geminiStub(t *testing.T, payload string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": payload}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func stubClient(ts *httptest.Server) *Client {
	c := NewClient()
	c.APIKey = "test-key"
	c.BaseURL = ts.URL
	c.HTTPClient = ts.Client()
	return c
}

func TestParseProductsFromText(t *testing.T) {
	ts := geminiStub(t, `[{"name":"Arroz Diana 500g","quantity":2,"price":3500,"category":"Granos","unit":"unidad"}]`, http.StatusOK)
	defer ts.Close()

	got := stubClient(ts).ParseProductsFromText(context.Background(), "2 arroz diana")
	if len(got) != 1 {
		t.Fatalf("expected 1 product, got %d", len(got))
	}
	p := got[0]
	if p.Name != "Arroz Diana 500g" || !p.Quantity.Equal(decimal.NewFromInt(2)) || !p.UnitPrice.Equal(decimal.NewFromInt(3500)) {
		t.Fatalf("unexpected product: %+v", p)
	}
}

func TestParseProductsFromTextDegradesOnServerError(t *testing.T) {
	ts := geminiStub(t, "", http.StatusInternalServerError)
	defer ts.Close()

	got := stubClient(ts).ParseProductsFromText(context.Background(), "2 arroz")
	if len(got) != 0 {
		t.Fatalf("server error must degrade to empty result, got %+v", got)
	}
}

func TestParseProductsFromTextDegradesOnBadJSON(t *testing.T) {
	ts := geminiStub(t, `not json at all`, http.StatusOK)
	defer ts.Close()

	got := stubClient(ts).ParseProductsFromText(context.Background(), "2 arroz")
	if len(got) != 0 {
		t.Fatalf("unparseable response must degrade to empty result, got %+v", got)
	}
}

func TestParseProductsMissingAPIKey(t *testing.T) {
	c := NewClient()
	c.APIKey = ""

	if got := c.ParseProductsFromText(context.Background(), "2 arroz"); len(got) != 0 {
		t.Fatalf("missing key must degrade to empty result, got %+v", got)
	}
}

func TestIdentifyProductsFromImage(t *testing.T) {
	ts := geminiStub(t, `[{"name":"Coca-Cola 400ml","category":"Bebidas","unit":"unidad"}]`, http.StatusOK)
	defer ts.Close()

	got := stubClient(ts).IdentifyProductsFromImage(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg")
	if len(got) != 1 || got[0].Category != "Bebidas" {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestProductDetailsFromNameFallback(t *testing.T) {
	ts := geminiStub(t, "", http.StatusInternalServerError)
	defer ts.Close()

	got := stubClient(ts).ProductDetailsFromName(context.Background(), "Bombillo")
	if got.Category != "General" || got.Unit != "unidad" || got.Name != "Bombillo" {
		t.Fatalf("expected fallback details, got %+v", got)
	}
}

func TestProductDetailsFromNameFillsBlanks(t *testing.T) {
	ts := geminiStub(t, `{"category":"","unit":""}`, http.StatusOK)
	defer ts.Close()

	got := stubClient(ts).ProductDetailsFromName(context.Background(), "Bombillo")
	if got.Category != "General" || got.Unit != "unidad" {
		t.Fatalf("blank fields must fall back to defaults, got %+v", got)
	}
}
