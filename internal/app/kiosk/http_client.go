package kiosk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/exp/slog"

	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/app/kiosk/config"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/feedback"
	"github.com/AkashMedishetty/FeedbackSystem-sub002/internal/domain/queue"
)

type httpClient struct {
	client    *http.Client
	config    *config.Config
	log       *slog.Logger
	baseURL   string
	userAgent string
	kioskID   string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) (*httpClient, error) {
	client := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
			DisableCompression:  false,
			DisableKeepAlives:   false,
			MaxIdleConnsPerHost: 10,
		},
	}

	// Определяем протокол
	scheme := "http://"
	if cfg.EnableTLS {
		scheme = "https://"
	}
	baseURL := scheme + cfg.ServerAddress

	return &httpClient{
		client:    client,
		config:    cfg,
		log:       log,
		baseURL:   baseURL,
		userAgent: "FeedbackKiosk/1.0",
		kioskID:   cfg.KioskID,
	}, nil
}

// setCommonHeaders проставляет заголовки, по которым сервер узнает киоск
func (h *httpClient) setCommonHeaders(req *http.Request) {
	req.Header.Set("User-Agent", h.userAgent)
	if h.kioskID != "" {
		req.Header.Set("X-Kiosk-ID", h.kioskID)
	}
}

// HealthCheck проверяет доступность сервера. Используется монитором
// соединения как сигнал платформы о наличии сети.
func (h *httpClient) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/api/v1/health", nil)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	h.setCommonHeaders(req)

	resp, err := h.client.Do(req)
	if err != nil {
		return &feedback.TransportError{Op: "health check", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &feedback.RemoteRejectionError{StatusCode: resp.StatusCode}
	}

	return nil
}

// SubmitFeedback отправляет отзыв на сервер
func (h *httpClient) SubmitFeedback(ctx context.Context, req feedback.SubmitRequest) (*feedback.SubmitResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/feedback", req)
	if err != nil {
		return nil, err
	}

	var result feedback.SubmitResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return nil, err
	}

	if result.Status == "Error" {
		return nil, &feedback.RemoteRejectionError{StatusCode: resp.StatusCode, Message: result.Error}
	}

	return &result, nil
}

// CheckDuplicate спрашивает сервер, существует ли уже семантически
// эквивалентная сессия отзыва
func (h *httpClient) CheckDuplicate(ctx context.Context, req feedback.DuplicateCheckRequest) (*feedback.DuplicateCheckResponse, error) {
	resp, err := h.doRequest(ctx, http.MethodPost, "/api/v1/feedback/duplicate-check", req)
	if err != nil {
		return nil, err
	}

	var result feedback.DuplicateCheckResponse
	if err := h.parseResponse(resp, &result); err != nil {
		return nil, err
	}

	return &result, nil
}

// DispatchQueueEntry выполняет произвольную задачу очереди по ее собственному
// описанию {endpoint, method, headers, data}
func (h *httpClient) DispatchQueueEntry(ctx context.Context, entry *queue.Entry) error {
	url := entry.Endpoint
	if strings.HasPrefix(url, "/") {
		url = h.baseURL + url
	}

	var body io.Reader
	if len(entry.Data) > 0 {
		body = bytes.NewReader(entry.Data)
	}

	req, err := http.NewRequestWithContext(ctx, entry.Method, url, body)
	if err != nil {
		return fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	h.setCommonHeaders(req)
	for key, value := range entry.Headers {
		req.Header.Set(key, value)
	}

	h.log.Debug("Отправка задачи очереди",
		"id", entry.ID,
		"type", entry.Type,
		"method", entry.Method,
		"endpoint", entry.Endpoint,
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return &feedback.TransportError{Op: "dispatch queue entry", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &feedback.RemoteRejectionError{StatusCode: resp.StatusCode, Message: string(msg)}
	}

	return nil
}

func (h *httpClient) doRequest(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("ошибка маршалинга тела запроса: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания запроса: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	h.setCommonHeaders(req)

	h.log.Debug("Отправка запроса",
		"method", method,
		"url", req.URL.String(),
	)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &feedback.TransportError{Op: method + " " + path, Err: err}
	}

	return resp, nil
}

func (h *httpClient) parseResponse(resp *http.Response, result interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &feedback.TransportError{Op: "read response", Err: err}
	}

	h.log.Debug("Получен ответ",
		"status", resp.StatusCode,
		"body", string(body),
	)

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error  string `json:"error"`
			Detail string `json:"detail"`
		}
		msg := ""
		if err := json.Unmarshal(body, &errResp); err == nil {
			msg = errResp.Error
			if msg == "" {
				msg = errResp.Detail
			}
		}
		return &feedback.RemoteRejectionError{StatusCode: resp.StatusCode, Message: msg}
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return &feedback.TransportError{Op: "parse response", Err: err}
		}
	}

	return nil
}
