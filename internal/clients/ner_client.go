/**
 * NER Client - remote spaCy entity service
 *
 * Sends one text per request to an entity service that speaks the
 * {texts:[{uuid,text,language}]} / {texts:[{uuid,entities}]} JSON format
 * and returns the entities found. Used when NER_PROVIDER=spacy.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/adverant/nexus/idverify/internal/logging"
)

// NERClient handles communication with the entity service
type NERClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

type EntityMatch struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Text  string `json:"text"`
}

type Entity struct {
	Name    string        `json:"name"`
	Label   string        `json:"label"`
	Matches []EntityMatch `json:"matches"`
}

type EntityRequestRecord struct {
	UUID     string `json:"uuid"`
	Text     string `json:"text"`
	Language string `json:"language"`
}

type EntityResponseRecord struct {
	UUID     string   `json:"uuid"`
	Entities []Entity `json:"entities"`
}

type EntityRequest struct {
	Texts []EntityRequestRecord `json:"texts"`
}

type EntityResponse struct {
	Texts []EntityResponseRecord `json:"texts"`
}

// NewNERClient creates a new entity service client
func NewNERClient(baseURL string) *NERClient {
	return &NERClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logging.NewLogger("NERClient"),
	}
}

// Extract returns the entities recognized in text
func (c *NERClient) Extract(ctx context.Context, text string) ([]Entity, error) {
	id := uuid.New().String()
	endpoint := fmt.Sprintf("%s/entities", c.baseURL)

	reqBody, err := json.Marshal(EntityRequest{
		Texts: []EntityRequestRecord{{UUID: id, Text: text, Language: "en"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Request-ID", id)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request to entity service failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("entity service returned error status %d: %s", resp.StatusCode, string(body))
	}

	var entResp EntityResponse
	if err := json.Unmarshal(body, &entResp); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	for _, rec := range entResp.Texts {
		if rec.UUID == id {
			c.logger.Debug("Entities extracted", "count", len(rec.Entities), "textLength", len(text))
			return rec.Entities, nil
		}
	}

	return nil, fmt.Errorf("entity service response did not include text %s", id)
}

// HealthCheck verifies the entity service is reachable
func (c *NERClient) HealthCheck(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/healthz", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("health check failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
