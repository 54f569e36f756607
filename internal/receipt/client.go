package receipt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPParser calls the extraction API over HTTP.
type HTTPParser struct {
	apiURL string
	apiKey string
	client *http.Client
}

// NewHTTPParser creates a parser for the extraction API at apiURL.
func NewHTTPParser(apiURL, apiKey string) *HTTPParser {
	return &HTTPParser{
		apiURL: apiURL,
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

type parseRequest struct {
	Image       string `json:"image"` // base64
	ContentType string `json:"contentType"`
}

// Parse sends the image to the extraction API and decodes the structured
// result.
func (p *HTTPParser) Parse(ctx context.Context, image []byte, contentType string) (*ParsedReceipt, error) {
	if p.apiURL == "" {
		return nil, errors.New("receipt parser URL is not configured")
	}

	body, err := json.Marshal(parseRequest{
		Image:       base64.StdEncoding.EncodeToString(image),
		ContentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("receipt parser returned %d: %s", resp.StatusCode, raw)
	}

	var parsed ParsedReceipt
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("receipt parser returned invalid JSON: %w", err)
	}
	return &parsed, nil
}
