// Package model lists and describes the models available through the
// Messages API, grounded on the teacher's anthropic.Capabilities (beta
// feature headers, per-model capability flags) generalized into a
// listable registry rather than a fixed capability struct.
package model

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rescrv/claudius/xerrors"
)

// Info describes one model as returned by GET /v1/models.
type Info struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	CreatedAt   string `json:"created_at"`
}

// Page is one page of a paginated model listing.
type Page struct {
	Data    []Info `json:"data"`
	HasMore bool   `json:"has_more"`
	FirstID string `json:"first_id,omitempty"`
	LastID  string `json:"last_id,omitempty"`
}

// Lister fetches one page of /v1/models at a time.
type Lister struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
}

// List fetches a single page, starting after afterID (empty for the
// first page), limited to limit entries (0 uses the server default).
func (l *Lister) List(ctx context.Context, afterID string, limit int) (Page, error) {
	u, err := url.Parse(l.BaseURL + "/v1/models")
	if err != nil {
		return Page{}, xerrors.InvalidRequest("invalid base URL: " + err.Error())
	}
	q := u.Query()
	if afterID != "" {
		q.Set("after_id", afterID)
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprintf("%d", limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Page{}, xerrors.Network("building request", err)
	}
	req.Header.Set("x-api-key", l.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := l.httpClient().Do(req)
	if err != nil {
		return Page{}, xerrors.Network("sending request", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Page{}, xerrors.Network("reading response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Page{}, xerrors.API(resp.StatusCode, "unknown_error", string(body), "")
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return Page{}, xerrors.Serialization("decoding models page", err)
	}
	return page, nil
}

// All fetches every page and concatenates the results.
func (l *Lister) All(ctx context.Context) ([]Info, error) {
	var all []Info
	afterID := ""
	for {
		page, err := l.List(ctx, afterID, 0)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Data...)
		if !page.HasMore || page.LastID == "" {
			return all, nil
		}
		afterID = page.LastID
	}
}

func (l *Lister) httpClient() *http.Client {
	if l.HTTPClient != nil {
		return l.HTTPClient
	}
	return http.DefaultClient
}
