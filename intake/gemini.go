// Package intake turns free text, voice notes, and shelf photos into
// candidate catalog entries using the Gemini API. Failures never leave this
// package: every call degrades to an empty result or a sensible default so
// the checkout flow is never blocked by the AI service.
package intake

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tichatapp/tichat_backend/config"
)

const (
	defaultTextModel   = "gemini-2.5-pro"
	defaultVisionModel = "gemini-2.5-flash"

	geminiEndpoint = "https://generativelanguage.googleapis.com/v1beta/models/%s:generateContent?key=%s"
)

// ExtractedProduct is the shape the rest of the app consumes: one candidate
// line parsed from an order or a stock-receiving note.
type ExtractedProduct struct {
	Name      string          `json:"name"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Category  string          `json:"category"`
	Unit      string          `json:"unit"`
}

// ProductDetails is what vision identification returns: no quantity or
// price, the operator fills those in before the item enters the catalog.
type ProductDetails struct {
	Name     string `json:"name"`
	Category string `json:"category"`
	Unit     string `json:"unit"`
}

type Client struct {
	HTTPClient  *http.Client
	APIKey      string
	TextModel   string
	VisionModel string

	// BaseURL overrides the Gemini endpoint in tests.
	BaseURL string
}

func NewClient() *Client {
	return &Client{
		HTTPClient:  &http.Client{Timeout: 60 * time.Second},
		APIKey:      os.Getenv("GEMINI_API_KEY"),
		TextModel:   defaultTextModel,
		VisionModel: defaultVisionModel,
	}
}

// --- wire types (Gemini generateContent) ---

type generatePart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *generateInline `json:"inline_data,omitempty"`
}

type generateInline struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generateRequest struct {
	Contents []struct {
		Parts []generatePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (c *Client) generate(ctx context.Context, model string, parts []generatePart, jsonOut bool) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("GEMINI_API_KEY is not set")
	}

	var req generateRequest
	req.Contents = make([]struct {
		Parts []generatePart `json:"parts"`
	}, 1)
	req.Contents[0].Parts = parts
	if jsonOut {
		req.GenerationConfig = &generationConfig{ResponseMimeType: "application/json"}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf(geminiEndpoint, model, c.APIKey)
	if c.BaseURL != "" {
		endpoint = fmt.Sprintf(c.BaseURL+"/%s:generateContent?key=%s", model, c.APIKey)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// ParseProductsFromText extracts order/stock lines from free text. Returns
// an empty slice on any failure.
func (c *Client) ParseProductsFromText(ctx context.Context, text string) []ExtractedProduct {
	logger := config.GetLogger()

	prompt := fmt.Sprintf(`Eres un asistente para tenderos. Extrae la información de los productos del siguiente texto, incluyendo una categoría y unidad de medida apropiada para cada uno (ej: 'Bebidas' se vende por 'unidad', 'Queso' por 'libra'). Devuelve un arreglo JSON de objetos con las claves "name", "quantity", "price", "category" y "unit". Texto: %q`, text)

	raw, err := c.generate(ctx, c.TextModel, []generatePart{{Text: prompt}}, true)
	if err != nil {
		config.LogError(logger, "intake", "ParseProductsFromText", "generate", nil, err)
		return []ExtractedProduct{}
	}

	var products []ExtractedProduct
	if err := json.Unmarshal([]byte(raw), &products); err != nil {
		config.LogError(logger, "intake", "ParseProductsFromText", "json.Unmarshal", raw, err)
		return []ExtractedProduct{}
	}
	return products
}

// TranscribeAudio turns a Spanish voice note into text. Returns "" on any
// failure; the caller treats that as "nothing was said".
func (c *Client) TranscribeAudio(ctx context.Context, audio []byte, mimeType string) string {
	logger := config.GetLogger()

	parts := []generatePart{
		{InlineData: &generateInline{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(audio)}},
		{Text: "Transcribe este audio en español."},
	}
	raw, err := c.generate(ctx, c.VisionModel, parts, false)
	if err != nil {
		config.LogError(logger, "intake", "TranscribeAudio", "generate", nil, err)
		return ""
	}
	return raw
}

// ParseProductsFromAudio is the two-step voice path: transcribe, then run
// the same text extraction.
func (c *Client) ParseProductsFromAudio(ctx context.Context, audio []byte, mimeType string) []ExtractedProduct {
	text := c.TranscribeAudio(ctx, audio, mimeType)
	if text == "" {
		return []ExtractedProduct{}
	}
	return c.ParseProductsFromText(ctx, text)
}

// IdentifyProductsFromImage names the products visible on a shelf photo.
// No quantity or price comes back; the operator fills those in.
func (c *Client) IdentifyProductsFromImage(ctx context.Context, image []byte, mimeType string) []ProductDetails {
	logger := config.GetLogger()

	parts := []generatePart{
		{InlineData: &generateInline{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
		{Text: `Identifica los nombres de los productos en esta imagen de una estantería de tienda. Para cada producto, proporciona también una categoría y la unidad de medida más común (ej: unidad, libra, paquete). Devuelve un arreglo JSON de objetos con las claves "name", "category" y "unit".`},
	}
	raw, err := c.generate(ctx, c.VisionModel, parts, true)
	if err != nil {
		config.LogError(logger, "intake", "IdentifyProductsFromImage", "generate", nil, err)
		return []ProductDetails{}
	}

	var details []ProductDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		config.LogError(logger, "intake", "IdentifyProductsFromImage", "json.Unmarshal", raw, err)
		return []ProductDetails{}
	}
	return details
}

// ProductDetailsFromName suggests a category and unit for a product typed by
// name. Falls back to "General"/"unidad".
func (c *Client) ProductDetailsFromName(ctx context.Context, productName string) ProductDetails {
	logger := config.GetLogger()

	fallback := ProductDetails{Name: productName, Category: "General", Unit: "unidad"}

	prompt := fmt.Sprintf(`Para un producto llamado %q en una tienda de barrio en Colombia, ¿cuál es su categoría y unidad de medida más probable? Devuelve solo un objeto JSON con las claves "category" y "unit".`, productName)
	raw, err := c.generate(ctx, c.VisionModel, []generatePart{{Text: prompt}}, true)
	if err != nil {
		config.LogError(logger, "intake", "ProductDetailsFromName", "generate", nil, err)
		return fallback
	}

	var details ProductDetails
	if err := json.Unmarshal([]byte(raw), &details); err != nil {
		config.LogError(logger, "intake", "ProductDetailsFromName", "json.Unmarshal", raw, err)
		return fallback
	}
	details.Name = productName
	if details.Category == "" {
		details.Category = "General"
	}
	if details.Unit == "" {
		details.Unit = "unidad"
	}
	return details
}
