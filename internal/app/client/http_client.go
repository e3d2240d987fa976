package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"devicesync/internal/app/client/config"
	"devicesync/internal/domain/device"
	"devicesync/internal/domain/offline"
	"devicesync/internal/domain/sync"
	"devicesync/internal/domain/token"
	"devicesync/internal/domain/user"

	"golang.org/x/exp/slog"
)

const userAgent = "Devicesync-Client/1.0"

// APIError ошибка, возвращенная сервером в конверте ответа
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned status %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// HTTPClient клиент API синхронизации. Пользовательский токен нужен для
// управления устройствами и конфликтами, токен устройства для синхронизации.
type HTTPClient struct {
	client      *http.Client
	log         *slog.Logger
	baseURL     string
	userToken   string
	deviceToken string
}

func NewHTTPClient(cfg *config.Config, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		log:     log,
		baseURL: cfg.BaseURL(),
	}
}

func (h *HTTPClient) SetUserToken(token string) {
	h.userToken = token
}

func (h *HTTPClient) SetDeviceToken(token string) {
	h.deviceToken = token
}

// HealthCheck проверяет доступность сервера
func (h *HTTPClient) HealthCheck(ctx context.Context) error {
	return h.call(ctx, http.MethodGet, "/api/v1/health", "", nil, nil)
}

func (h *HTTPClient) Register(ctx context.Context, creds user.Credentials) error {
	return h.call(ctx, http.MethodPost, "/auth/register", "", creds, nil)
}

func (h *HTTPClient) Login(ctx context.Context, creds user.Credentials) (*user.Session, error) {
	var s user.Session
	if err := h.call(ctx, http.MethodPost, "/auth/login", "", creds, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (h *HTTPClient) RegisterDevice(ctx context.Context, req device.RegisterRequest) (*device.Registration, error) {
	var reg device.Registration
	if err := h.call(ctx, http.MethodPost, "/devices/register", h.userToken, req, &reg); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (h *HTTPClient) Devices(ctx context.Context, activeOnly bool) ([]*device.Device, error) {
	path := "/devices/user"
	if activeOnly {
		path += "?active_only=true"
	}
	var devices []*device.Device
	if err := h.call(ctx, http.MethodGet, path, h.userToken, nil, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// RefreshDeviceToken обменивает текущий токен устройства на новый
func (h *HTTPClient) RefreshDeviceToken(ctx context.Context) (token.Token, error) {
	var resp struct {
		AuthToken token.Token `json:"auth_token"`
	}
	if err := h.call(ctx, http.MethodPost, "/devices/token/refresh", h.deviceToken, nil, &resp); err != nil {
		return token.Token{}, err
	}
	return resp.AuthToken, nil
}

func (h *HTTPClient) Sync(ctx context.Context, items []sync.Request) (*sync.Result, error) {
	body := map[string]any{"items": items}
	var res sync.Result
	if err := h.call(ctx, http.MethodPost, "/sync/sync", h.deviceToken, body, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *HTTPClient) StoreOffline(ctx context.Context, ops []offline.Input) ([]*offline.Operation, error) {
	body := map[string]any{"operations": ops}
	var stored []*offline.Operation
	if err := h.call(ctx, http.MethodPost, "/sync/offline", h.deviceToken, body, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

func (h *HTTPClient) ReplayOffline(ctx context.Context) (*sync.Result, error) {
	var res sync.Result
	if err := h.call(ctx, http.MethodPost, "/sync/offline/sync", h.deviceToken, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (h *HTTPClient) Data(ctx context.Context, f sync.Filter) ([]*sync.Record, error) {
	q := url.Values{}
	if f.DataType != "" {
		q.Set("data_type", string(f.DataType))
	}
	if f.DeviceID != "" {
		q.Set("device_id", f.DeviceID)
	}
	path := "/sync/data"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var records []*sync.Record
	if err := h.call(ctx, http.MethodGet, path, h.userToken, nil, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (h *HTTPClient) Conflicts(ctx context.Context) ([]*sync.Conflict, error) {
	var conflicts []*sync.Conflict
	if err := h.call(ctx, http.MethodGet, "/sync/conflicts", h.userToken, nil, &conflicts); err != nil {
		return nil, err
	}
	return conflicts, nil
}

func (h *HTTPClient) ResolveConflict(ctx context.Context, req sync.ResolveRequest) (*sync.Record, error) {
	var rec sync.Record
	if err := h.call(ctx, http.MethodPost, "/sync/conflicts/resolve", h.userToken, req, &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (h *HTTPClient) call(ctx context.Context, method, path, bearer string, body, result any) error {
	resp, err := h.doRequest(ctx, method, path, bearer, body)
	if err != nil {
		return err
	}
	return h.parseResponse(resp, result)
}

func (h *HTTPClient) doRequest(ctx context.Context, method, path, bearer string, body any) (*http.Response, error) {
	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	req.Header.Set("User-Agent", userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	h.log.Debug("sending request", "method", method, "url", req.URL.String())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// parseResponse разворачивает конверт {success, data|error}
func (h *HTTPClient) parseResponse(resp *http.Response, result any) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	h.log.Debug("received response", "status", resp.StatusCode, "bytes", len(body))

	var env envelope
	if len(body) > 0 {
		if err := json.Unmarshal(body, &env); err != nil && resp.StatusCode < 400 {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	if resp.StatusCode >= 400 || (len(body) > 0 && !env.Success) {
		return &APIError{
			Status:  resp.StatusCode,
			Code:    env.Error.Code,
			Message: env.Error.Message,
		}
	}

	if result != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, result); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
	}
	return nil
}
