// Package client HTTP клиент сервера разбора конфликтов.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/iudanet/gophsync/internal/models"
	"github.com/iudanet/gophsync/pkg/api"
)

// ErrUnauthorized сервер отклонил токен ревьюера
var ErrUnauthorized = errors.New("unauthorized")

// StatusError ответ сервера с кодом ошибки
type StatusError struct {
	Message    string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server error (%d): %s", e.StatusCode, e.Message)
}

// Unwrap позволяет проверять 401 через errors.Is(err, ErrUnauthorized)
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	return nil
}

// Client представляет HTTP клиент для взаимодействия с сервером
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient создает новый API клиент. token передается как Bearer.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				// Копируем заголовки Authorization при редиректе
				if len(via) > 0 && via[0].Header.Get("Authorization") != "" {
					req.Header.Set("Authorization", via[0].Header.Get("Authorization"))
				}
				return nil
			},
		},
	}
}

// Reconcile отправляет удаленные снимки на согласование
func (c *Client) Reconcile(ctx context.Context, records []*models.Record) (*api.ReconcileResponse, error) {
	var resp api.ReconcileResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/reconcile", api.ReconcileRequest{Records: records}, &resp); err != nil {
		return nil, fmt.Errorf("reconcile request failed: %w", err)
	}
	return &resp, nil
}

// ListConflicts получает записи истории конфликтов
func (c *Client) ListConflicts(ctx context.Context, unresolvedOnly bool) (*api.ConflictListResponse, error) {
	path := "/api/v1/conflicts"
	if unresolvedOnly {
		path += "?unresolved=true"
	}

	var resp api.ConflictListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list conflicts request failed: %w", err)
	}
	return &resp, nil
}

// GetConflict получает конфликт с подсказками по полям
func (c *Client) GetConflict(ctx context.Context, id string) (*api.ConflictResponse, error) {
	var resp api.ConflictResponse
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/conflicts/"+url.PathEscape(id), nil, &resp); err != nil {
		return nil, fmt.Errorf("get conflict request failed: %w", err)
	}
	return &resp, nil
}

// Resolve отправляет ручное решение
func (c *Client) Resolve(ctx context.Context, id string, req api.ResolveRequest) (*models.ConflictResolution, error) {
	var resp api.ResolveResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/conflicts/"+url.PathEscape(id)+"/resolve", req, &resp); err != nil {
		return nil, fmt.Errorf("resolve request failed: %w", err)
	}
	return resp.Resolution, nil
}

// Dismiss скрывает конфликт из списка по умолчанию
func (c *Client) Dismiss(ctx context.Context, id string) error {
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/conflicts/"+url.PathEscape(id)+"/dismiss", nil, nil); err != nil {
		return fmt.Errorf("dismiss request failed: %w", err)
	}
	return nil
}

// doRequest выполняет HTTP запрос
func (c *Client) doRequest(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			statusErr.Message = errResp.Error
		}
		return statusErr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
