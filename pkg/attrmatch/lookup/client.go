package lookup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cognicore/attrmatch/pkg/attrmatch/attr"
)

// Client calls a remote lookup service that answers
// {"sentence": "..."} with {"attributes": [wire candidates]}.
type Client struct {
	Endpoint string

	HTTPClient *http.Client
}

type lookupRequest struct {
	Sentence string `json:"sentence"`
}

// Lookup implements the lookup collaborator over HTTP.
func (c *Client) Lookup(ctx context.Context, sentence string) ([]attr.Candidate, error) {
	if c.Endpoint == "" {
		return nil, fmt.Errorf("lookup: endpoint required")
	}
	reqBody, err := json.Marshal(lookupRequest{Sentence: sentence})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("lookup: status %d", resp.StatusCode)
	}
	return DecodeResponse(resp.Body)
}

// DecodeResponse parses a wire response. A candidate without exactly one
// value field fails the whole response.
func DecodeResponse(r io.Reader) ([]attr.Candidate, error) {
	var payload attr.WireResponse
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode lookup response: %w", err)
	}
	out := make([]attr.Candidate, 0, len(payload.Attributes))
	for _, w := range payload.Attributes {
		c, err := attr.DecodeWireCandidate(w)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: 15 * time.Second}
}
