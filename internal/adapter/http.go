package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sethvargo/go-retry"

	"github.com/agrobook/agrobook/internal/config"
	"github.com/agrobook/agrobook/internal/logger"
	"github.com/agrobook/agrobook/internal/utils"
	"github.com/agrobook/agrobook/models"
)

const (
	defaultMaxRetries   = 3
	defaultRetryBackoff = 500 * time.Millisecond
)

type httpRemoteStore struct {
	client *utils.HTTPClient

	mu    sync.RWMutex
	token string

	maxRetries uint64
	backoff    time.Duration

	logger *logger.Logger
}

// NewHTTPRemoteStore constructs an HTTP/REST implementation of [RemoteStore].
// It normalises and validates the base URL from adapterCfg.HTTPAddress,
// configures the underlying HTTP client with the resolved base URL and
// request timeout, and installs the initial bearer token from the config.
//
// Returns an error if adapterCfg.HTTPAddress is empty or cannot be parsed as
// a valid URL.
func NewHTTPRemoteStore(adapterCfg config.ClientAdapter, logger *logger.Logger) (RemoteStore, error) {
	client := utils.NewHTTPClient()
	baseURL, err := normalizeBaseURL(adapterCfg.HTTPAddress)
	if err != nil {
		return nil, fmt.Errorf("invalid adapter http address: %w", err)
	}

	client.
		SetBaseURL(baseURL).
		SetTimeout(adapterCfg.RequestTimeout)

	h := &httpRemoteStore{
		client:     client,
		maxRetries: defaultMaxRetries,
		backoff:    defaultRetryBackoff,
		logger:     logger,
	}
	h.SetToken(adapterCfg.AuthToken)

	return h, nil
}

func normalizeBaseURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("empty address")
	}

	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("address must include host and scheme")
	}

	return strings.TrimRight(u.String(), "/"), nil
}

// SetToken implements [RemoteStore]. It stores token (whitespace-trimmed)
// for use in the Authorization header of all subsequent requests. Safe to
// call while sync passes are in flight; requests already built keep the
// token they were built with.
func (h *httpRemoteStore) SetToken(token string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.token = strings.TrimSpace(token)
}

// Token implements [RemoteStore].
func (h *httpRemoteStore) Token() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.token
}

// Ping implements [RemoteStore]. A single GET to the health endpoint, no
// retries: the connectivity monitor owns the probing cadence.
func (h *httpRemoteStore) Ping(ctx context.Context) error {
	resp, err := h.client.R().SetContext(ctx).Get("/api/health")
	if err != nil {
		return fmt.Errorf("%w: ping: %s", ErrTransient, err)
	}

	return mapHTTPError(resp)
}

// Pull implements [RemoteStore]. It GETs /api/{table}/changes with the
// cursor as the `since` query parameter and converts the wire records back
// to engine records through the table schema.
func (h *httpRemoteStore) Pull(ctx context.Context, table, cursor string) (models.PullResult, error) {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return models.PullResult{}, fmt.Errorf("%w: unknown table %s", ErrPermanent, table)
	}
	if err := h.checkToken(); err != nil {
		return models.PullResult{}, err
	}

	var changes models.ChangesResponse
	err := h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.authedRequest(ctx).
			SetQueryParam("since", cursor).
			Get("/api/" + table + "/changes")
		if err != nil {
			return fmt.Errorf("%w: pull %s: %s", ErrTransient, table, err)
		}
		if err = mapHTTPError(resp); err != nil {
			return err
		}

		if err = json.Unmarshal(resp.Body(), &changes); err != nil {
			return fmt.Errorf("%w: decode %s changes: %s", ErrPermanent, table, err)
		}
		return nil
	})
	if err != nil {
		return models.PullResult{}, err
	}

	result := models.PullResult{NextCursor: changes.NextCursor}
	for _, wire := range changes.Records {
		result.Records = append(result.Records, wire.ToRecord(schema))
	}
	return result, nil
}

// Push implements [RemoteStore]. The whole batch is POSTed to
// /api/{table}/batch; a transient failure retries the entire request, which
// is safe because the backend deduplicates on LocalID.
func (h *httpRemoteStore) Push(ctx context.Context, table string, records []models.Record) ([]models.PushResult, error) {
	schema, ok := models.SchemaFor(table)
	if !ok {
		return nil, fmt.Errorf("%w: unknown table %s", ErrPermanent, table)
	}
	if err := h.checkToken(); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}

	req := models.BatchRequest{Length: len(records)}
	for _, rec := range records {
		req.Records = append(req.Records, models.ToWire(rec))
	}

	var batch models.BatchResponse
	err := h.withRetry(ctx, func(ctx context.Context) error {
		resp, err := h.authedRequest(ctx).
			SetHeader("Content-Type", "application/json").
			SetBody(req).
			Post("/api/" + table + "/batch")
		if err != nil {
			return fmt.Errorf("%w: push %s: %s", ErrTransient, table, err)
		}
		if err = mapHTTPError(resp); err != nil {
			return err
		}

		if err = json.Unmarshal(resp.Body(), &batch); err != nil {
			return fmt.Errorf("%w: decode %s batch response: %s", ErrPermanent, table, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	results := make([]models.PushResult, 0, len(batch.Results))
	for _, row := range batch.Results {
		out := models.PushResult{
			LocalID: row.LocalID,
			Outcome: row.Status,
			CloudID: row.CloudID,
			Reason:  row.Reason,
		}
		if row.Record != nil {
			rec := row.Record.ToRecord(schema)
			out.Remote = &rec
		}
		results = append(results, out)
	}
	return results, nil
}

// checkToken rejects requests up front when the stored token has already
// expired; the backend would only answer 401 anyway.
func (h *httpRemoteStore) checkToken() error {
	token := h.Token()
	if token == "" {
		return fmt.Errorf("%w: no token set", ErrUnauthorized)
	}
	if utils.TokenExpired(token, time.Now()) {
		return fmt.Errorf("%w: token expired", ErrUnauthorized)
	}
	return nil
}

func (h *httpRemoteStore) withRetry(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(h.maxRetries, retry.NewExponential(h.backoff))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := op(ctx)
		if errors.Is(err, ErrTransient) {
			h.logger.Debug().Err(err).Msg("retrying transient backend error")
			return retry.RetryableError(err)
		}
		return err
	})
}

func (h *httpRemoteStore) authedRequest(ctx context.Context) *resty.Request {
	req := h.client.R().SetContext(ctx)
	if token := h.Token(); token != "" {
		req.SetHeader("Authorization", "Bearer "+token)
	}
	return req
}
