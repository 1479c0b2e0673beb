package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// FHIRClient is a minimal client for the upstream FHIR gateway. The engine
// only ever sees it through the sync steps.
type FHIRClient struct {
	baseURL string
	client  *http.Client
}

func NewFHIRClient(baseURL string, timeout time.Duration) *FHIRClient {
	if strings.TrimSpace(baseURL) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &FHIRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// CreateResource posts one FHIR resource and returns the decoded response
// body. Any status >= 400 is an error carrying the response text.
func (c *FHIRClient) CreateResource(ctx context.Context, resourceType string, resource map[string]any) (map[string]any, error) {
	raw, err := json.Marshal(resource)
	if err != nil {
		return nil, fmt.Errorf("encode %s resource: %w", resourceType, err)
	}
	url := c.baseURL + "/" + resourceType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/fhir+json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fhir %s returned %d: %s", resourceType, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	out := map[string]any{}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, fmt.Errorf("decode fhir response: %w", err)
		}
	}
	return out, nil
}
