// Package rest implements backend.BusinessBackend against the booking
// platform's REST API.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/salonflow/salonflow-sessions/internal/backend"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// Backend calls the booking platform over HTTP.
type Backend struct {
	client *resty.Client
}

var _ backend.BusinessBackend = (*Backend)(nil)

// New builds a REST backend. token may be empty for unauthenticated
// dev targets.
func New(baseURL, token string, timeout time.Duration) *Backend {
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	if token != "" {
		c.SetAuthToken(token)
	}
	return &Backend{client: c}
}

func (b *Backend) FetchClient(ctx context.Context, tenantID int64, phone string) (*model.ClientRecord, error) {
	resp, err := b.client.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/v1/companies/%d/clients/%s", tenantID, phone))
	if err != nil {
		return nil, fmt.Errorf("backend fetch client: %w", err)
	}
	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, model.ErrNotFound
	default:
		return nil, fmt.Errorf("backend fetch client: status %d", resp.StatusCode())
	}

	var rec model.ClientRecord
	if err := json.Unmarshal(resp.Body(), &rec); err != nil {
		return nil, fmt.Errorf("backend decode client: %w", err)
	}
	return &rec, nil
}
