package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/tichatapp/tichat_backend/intake"
)

// geminiStub mimics a generateContent success payload.
func geminiStub(t *testing.T, payload string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"candidates": []map[string]any{
				{"content": map[string]any{"parts": []map[string]any{{"text": payload}}}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestProductDetailsHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	ts := geminiStub(t, `{"category":"Bebidas","unit":"unidad"}`)
	defer ts.Close()

	orig := intakeClient
	t.Cleanup(func() { intakeClient = orig })
	intakeClient = intake.NewClient()
	intakeClient.APIKey = "test-key"
	intakeClient.BaseURL = ts.URL
	intakeClient.HTTPClient = ts.Client()

	r := gin.New()
	r.POST("/intake/product-details", productDetailsHandler)

	req := httptest.NewRequest(http.MethodPost, "/intake/product-details", strings.NewReader(`{"name":"Coca-Cola 400ml"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var got intake.ProductDetails
	if err := json.Unmarshal(w.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Name != "Coca-Cola 400ml" || got.Category != "Bebidas" || got.Unit != "unidad" {
		t.Fatalf("unexpected details: %+v", got)
	}
}

func TestProductDetailsHandlerRequiresName(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.POST("/intake/product-details", productDetailsHandler)

	req := httptest.NewRequest(http.MethodPost, "/intake/product-details", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing name, got %d", w.Code)
	}
}
