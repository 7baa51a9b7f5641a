// Package gateway provides the HTTP client for the fetch/login server.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/finanze/finanze-sub000/internal/common"
	"github.com/finanze/finanze-sub000/internal/model"
	"github.com/finanze/finanze-sub000/internal/service"
)

// Client talks JSON over HTTP to the fetch/login server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	retryOpts  service.RetryOptions
}

// NewClient creates a gateway client for the given base URL.
func NewClient(baseURL string) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("gateway base URL is required: %w", common.ErrMissingConfig)
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid gateway base URL: %w", err)
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Institution logins and deep scrapes are slow.
			Timeout: 5 * time.Minute,
		},
		logger: slog.Default().With("component", "gateway"),
		retryOpts: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: 1 * time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

type loginRequest struct {
	Credentials map[string]string `json:"credentials"`
	Entity      string            `json:"entity"`
	Code        string            `json:"code,omitempty"`
	ProcessID   string            `json:"processId,omitempty"`
}

type loginResponse struct {
	Details   map[string]string `json:"details,omitempty"`
	Code      model.ResultCode  `json:"code"`
	ProcessID string            `json:"processId,omitempty"`
}

type fetchRequest struct {
	Entity        string          `json:"entity,omitempty"`
	Code          string          `json:"code,omitempty"`
	ProcessID     string          `json:"processId,omitempty"`
	Features      []model.Feature `json:"features"`
	Deep          bool            `json:"deep,omitempty"`
	AvoidNewLogin bool            `json:"avoidNewLogin,omitempty"`
}

type fetchResponse struct {
	Details *fetchDetails    `json:"details,omitempty"`
	Code    model.ResultCode `json:"code"`
}

type fetchDetails struct {
	Credentials map[string]string `json:"credentials,omitempty"`
	ProcessID   string            `json:"processId,omitempty"`
	Wait        int               `json:"wait,omitempty"`
}

type entitiesResponse struct {
	Entities []entityPayload `json:"entities"`
}

type entityPayload struct {
	CredentialsTemplate map[string]string `json:"credentials_template"`
	ID                  string            `json:"id"`
	Name                string            `json:"name"`
	Type                string            `json:"type"`
	Origin              string            `json:"origin"`
	Status              string            `json:"status"`
	SetupLoginType      string            `json:"setup_login_type"`
	ExternalEntityID    string            `json:"external_entity_id"`
	Features            []model.Feature   `json:"features"`
	Pin                 *struct {
		Positions int `json:"positions"`
	} `json:"pin,omitempty"`
}

// Login performs the gateway login operation.
func (c *Client) Login(ctx context.Context, entityID string, credentials map[string]string, code, processID string) (*model.LoginResult, error) {
	req := loginRequest{
		Entity:      entityID,
		Credentials: credentials,
		Code:        code,
		ProcessID:   processID,
	}

	var resp loginResponse
	if err := c.post(ctx, "/api/v1/login", req, &resp); err != nil {
		return nil, err
	}

	return &model.LoginResult{
		Code:      resp.Code,
		ProcessID: resp.ProcessID,
		Details:   resp.Details,
	}, nil
}

// FetchFinancial fetches data for a financial institution entity.
func (c *Client) FetchFinancial(ctx context.Context, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	return c.fetch(ctx, "/api/v1/fetch/financial", entityID, features, opts)
}

// FetchCrypto fetches data for a crypto entity, or all crypto wallets when
// entityID is empty.
func (c *Client) FetchCrypto(ctx context.Context, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	return c.fetch(ctx, "/api/v1/fetch/crypto", entityID, features, opts)
}

// FetchExternal triggers a refresh of an externally-provided entity. The
// server signals cooldowns on this path with a bare 429 status rather than
// a result code.
func (c *Client) FetchExternal(ctx context.Context, externalEntityID string) (*model.FetchResult, error) {
	var resp fetchResponse
	path := "/api/v1/fetch/external/" + url.PathEscape(externalEntityID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return mapFetchResponse(&resp), nil
}

// Disconnect removes the entity's stored connection at the gateway.
func (c *Client) Disconnect(ctx context.Context, entityID string) error {
	path := "/api/v1/entities/" + url.PathEscape(entityID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// Entities lists the connectable entity directory. Retries transient
// transport failures; directory reads are idempotent.
func (c *Client) Entities(ctx context.Context) ([]model.Entity, error) {
	var resp entitiesResponse
	err := common.WithRetry(ctx, func() error {
		err := c.do(ctx, http.MethodGet, "/api/v1/entities", nil, &resp)
		if err != nil && common.HTTPStatus(err) != 0 {
			// HTTP-level rejections won't improve on retry.
			return &common.RetryableError{Err: err, Retryable: false}
		}
		return err
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	entities := make([]model.Entity, 0, len(resp.Entities))
	for _, p := range resp.Entities {
		entities = append(entities, mapEntityPayload(p))
	}
	return entities, nil
}

func (c *Client) fetch(ctx context.Context, path, entityID string, features []model.Feature, opts service.FetchOptions) (*model.FetchResult, error) {
	req := fetchRequest{
		Entity:        entityID,
		Features:      features,
		Code:          opts.Code,
		ProcessID:     opts.ProcessID,
		Deep:          opts.Deep,
		AvoidNewLogin: opts.AvoidNewLogin,
	}

	var resp fetchResponse
	if err := c.post(ctx, path, req, &resp); err != nil {
		return nil, err
	}
	return mapFetchResponse(&resp), nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, http.MethodPost, path, body, out)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return common.NewUserError("could not reach the fetch server",
			fmt.Errorf("%w: %v", common.ErrGatewayConnection, err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// Drain for connection reuse; the payload is not part of the
		// contract on error statuses.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		c.logger.Debug("Gateway returned error status",
			"method", method,
			"path", path,
			"status", resp.StatusCode)
		return &common.HTTPStatusError{Status: resp.StatusCode}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func mapFetchResponse(resp *fetchResponse) *model.FetchResult {
	result := &model.FetchResult{Code: resp.Code}
	if resp.Details != nil {
		result.Details = &model.FetchDetails{
			ProcessID:   resp.Details.ProcessID,
			WaitSeconds: resp.Details.Wait,
			Credentials: resp.Details.Credentials,
		}
	}
	return result
}

func mapEntityPayload(p entityPayload) model.Entity {
	e := model.Entity{
		ID:               p.ID,
		Name:             p.Name,
		Type:             model.EntityType(p.Type),
		Origin:           model.EntityOrigin(p.Origin),
		Status:           model.EntityStatus(p.Status),
		SetupLoginType:   model.SetupLoginType(p.SetupLoginType),
		ExternalEntityID: p.ExternalEntityID,
		Features:         p.Features,
	}
	if e.Origin == "" {
		e.Origin = model.OriginNative
	}
	if p.Pin != nil {
		e.Pin = &model.PinSpec{Positions: p.Pin.Positions}
	}
	// JSON objects carry no order; keep the template deterministic.
	names := make([]string, 0, len(p.CredentialsTemplate))
	for name := range p.CredentialsTemplate {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		e.Credentials = append(e.Credentials, model.CredentialField{
			Name: name,
			Type: model.CredentialType(p.CredentialsTemplate[name]),
		})
	}
	return e
}

// Ensure Client implements the Gateway interface.
var _ service.Gateway = (*Client)(nil)
