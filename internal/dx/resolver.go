// Package dx is the DNAnexus platform boundary: object-URL resolution,
// the resolution cache, and the instance type database.
package dx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// URLPrefix marks platform object URLs inside WDL documents, e.g.
// dx://project-xxxx:record-yyyy or dx://project-xxxx:/assets/ubuntu.
const URLPrefix = "dx://"

// IsPlatformURL reports whether s is a platform object URL.
func IsPlatformURL(s string) bool {
	return strings.HasPrefix(s, URLPrefix)
}

// Resolver maps a platform URL to the record id of the object it names.
type Resolver interface {
	ResolveURL(ctx context.Context, url string) (string, error)
}

// APIResolver resolves URLs against the platform JSON API.
type APIResolver struct {
	endpoint string
	token    string
	client   *http.Client
	logger   *slog.Logger
}

// NewAPIResolver creates a resolver talking to the given API endpoint
// (e.g. https://api.dnanexus.com) with a bearer token.
func NewAPIResolver(endpoint, token string, logger *slog.Logger) *APIResolver {
	return &APIResolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		token:    token,
		client:   &http.Client{Timeout: 30 * time.Second},
		logger:   logger.With("component", "dx"),
	}
}

type resolveRequest struct {
	URL       string `json:"url"`
	RequestID string `json:"requestId"`
}

type resolveResponse struct {
	RecordID string `json:"recordId"`
	Error    string `json:"error,omitempty"`
}

// ResolveURL resolves a dx:// URL to a record id. A URL that already
// names a record (dx://project:record-id) is returned without a round
// trip.
func (r *APIResolver) ResolveURL(ctx context.Context, url string) (string, error) {
	if !IsPlatformURL(url) {
		return "", fmt.Errorf("not a platform URL: %q", url)
	}
	rest := strings.TrimPrefix(url, URLPrefix)
	if i := strings.IndexByte(rest, ':'); i >= 0 {
		if id := rest[i+1:]; strings.HasPrefix(id, "record-") {
			return id, nil
		}
	}

	reqID := uuid.NewString()
	body, err := json.Marshal(resolveRequest{URL: url, RequestID: reqID})
	if err != nil {
		return "", fmt.Errorf("marshal resolve request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint+"/system/resolveDataObjects", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build resolve request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.token)

	r.logger.Debug("resolve", "url", url, "request_id", reqID)
	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read resolve response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("resolve %s: HTTP %d: %s", url, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var out resolveResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return "", fmt.Errorf("parse resolve response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("resolve %s: %s", url, out.Error)
	}
	if out.RecordID == "" {
		return "", fmt.Errorf("resolve %s: object not found", url)
	}
	return out.RecordID, nil
}

// StaticResolver resolves from a fixed map. Used in tests and offline
// compilations.
type StaticResolver map[string]string

func (s StaticResolver) ResolveURL(_ context.Context, url string) (string, error) {
	if id, ok := s[url]; ok {
		return id, nil
	}
	return "", fmt.Errorf("resolve %s: object not found", url)
}
