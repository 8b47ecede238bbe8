// Package client типизированный REST-клиент внешнего бэкенда историй, страниц и прохождений.
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

	"gamebook-server/internal/models"

	"go.uber.org/zap"
)

// maxErrorBody сколько байт тела ответа читаем для сообщения об ошибке.
const maxErrorBody = 4096

// Client реализует interfaces.Backend поверх HTTP/JSON.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *zap.Logger
}

// New создает клиент. token передается как Bearer, если не пустой.
func New(baseURL, token string, timeout time.Duration, logger *zap.Logger) (*Client, error) {
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base URL: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.Named("BackendClient"),
	}, nil
}

// errorBody формат ошибки бэкенда. Поддерживаются оба поля, message и error.
type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// classify сопоставляет HTTP статус классу ошибки.
func classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return models.ErrNotFound
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity, status == http.StatusConflict:
		return models.ErrValidation
	default:
		return models.ErrNetwork
	}
}

// do выполняет запрос и декодирует ответ в out (если out != nil и тело не пустое).
func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) error {
	log := c.logger.With(zap.String("op", op), zap.String("method", method), zap.String("path", path))

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		log.Warn("Backend request failed", zap.Error(err))
		return &models.APIError{Op: op, Message: err.Error(), Kind: models.ErrNetwork}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &models.APIError{Op: op, StatusCode: resp.StatusCode, Kind: classify(resp.StatusCode)}
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil {
			apiErr.Message = eb.Message
			if apiErr.Message == "" {
				apiErr.Message = eb.Error
			}
		}
		log.Debug("Backend returned error status", zap.Int("status", resp.StatusCode), zap.String("message", apiErr.Message))
		return apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		log.Error("Failed to decode backend response", zap.Error(err))
		return &models.APIError{Op: op, StatusCode: resp.StatusCode, Message: "invalid response body", Kind: models.ErrNetwork}
	}
	return nil
}
