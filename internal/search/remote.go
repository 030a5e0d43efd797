package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/soundshelf/internal/library"
)

// ErrNoEndpoint is returned when the remote searcher has no URL configured.
var ErrNoEndpoint = errors.New("no search endpoint configured")

type remoteResponse struct {
	Sounds []library.Sound `json:"sounds"`
	Error  string          `json:"error,omitempty"`
	Logs   []string        `json:"logs,omitempty"`
}

// Remote calls the hosted semantic search endpoint.
type Remote struct {
	endpoint string
	client   *http.Client
}

var _ library.Searcher = (*Remote)(nil)

// NewRemote creates a remote searcher posting to endpoint.
func NewRemote(endpoint string, timeout time.Duration) *Remote {
	return &Remote{
		endpoint: endpoint,
		client:   &http.Client{Timeout: timeout},
	}
}

func (r *Remote) Name() string { return "remote" }

// Search posts the request and decodes the sounds from the response.
func (r *Remote) Search(ctx context.Context, req library.SearchRequest) ([]library.Sound, error) {
	if r.endpoint == "" {
		return nil, ErrNoEndpoint
	}
	if req.Tags == nil {
		req.Tags = []string{}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var out remoteResponse
	decodeErr := json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && out.Error != "" {
			return nil, fmt.Errorf("search failed (%d): %s", resp.StatusCode, out.Error)
		}
		return nil, fmt.Errorf("search failed: status %d", resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("invalid search response: %w", decodeErr)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("search failed: %s", out.Error)
	}

	for _, line := range out.Logs {
		log.Debug("Remote search", "log", line)
	}
	if out.Sounds == nil {
		out.Sounds = []library.Sound{}
	}
	return out.Sounds, nil
}
