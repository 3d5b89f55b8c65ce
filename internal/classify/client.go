package classify

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kaptinlin/jsonschema"
)

//go:embed response_schema.json
var responseSchemaJSON []byte

// Client calls the external classification service over HTTP. Responses are
// validated against an embedded JSON Schema before being applied, so a model
// that returns malformed structure fails the batch instead of writing junk.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	schema     *jsonschema.Schema
	stubMode   bool
}

// NewClient creates a classifier client. In stub mode every item is placed in
// the first configured category with neutral sentiment, which keeps local
// development working without a model behind it.
func NewClient(baseURL, secret string, stubMode bool) (*Client, error) {
	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(responseSchemaJSON)
	if err != nil {
		return nil, fmt.Errorf("failed to compile response schema: %w", err)
	}

	return &Client{
		baseURL:    baseURL,
		secret:     secret,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		schema:     schema,
		stubMode:   stubMode,
	}, nil
}

// Classify sends one batch to the classification service and returns the
// per-item results.
func (c *Client) Classify(ctx context.Context, items []Item, categories, products, buckets []Definition) ([]Result, error) {
	if c.stubMode {
		return c.stubResults(items, categories, products), nil
	}

	reqBody := map[string]interface{}{
		"items":      items,
		"categories": categories,
		"products":   products,
		"buckets":    buckets,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/classify", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Classifier-Secret", c.secret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classifier returned status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if err := c.validate(body); err != nil {
		return nil, err
	}

	var payload struct {
		Results []Result `json:"results"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return payload.Results, nil
}

func (c *Client) validate(body []byte) error {
	var value interface{}
	if err := json.Unmarshal(body, &value); err != nil {
		return fmt.Errorf("classifier response is not valid JSON: %w", err)
	}

	result := c.schema.Validate(value)
	if !result.IsValid() {
		var errorMessages []string
		for field, evalErr := range result.Errors {
			errorMessages = append(errorMessages, fmt.Sprintf("%s: %s", field, evalErr.Error()))
		}
		return fmt.Errorf("classifier response failed schema validation: %s", strings.Join(errorMessages, "; "))
	}
	return nil
}

func (c *Client) stubResults(items []Item, categories, products []Definition) []Result {
	category := "General"
	if len(categories) > 0 {
		category = categories[0].Name
	}
	product := "General"
	if len(products) > 0 {
		product = products[0].Name
	}

	results := make([]Result, 0, len(items))
	for _, item := range items {
		results = append(results, Result{
			ItemID:         item.ID,
			Category:       category,
			Product:        product,
			SentimentScore: 3.0,
		})
	}
	return results
}
