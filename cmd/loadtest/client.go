package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/transport/httpapi"
)

type actor struct {
	id   string
	role string
}

// statusError: ответ API вне диапазона 2xx.
type statusError struct {
	method string
	status int
	body   string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.method, e.status, e.body)
}

// statusOf возвращает HTTP-статус ошибки; 0: ответа не было.
func statusOf(err error) int {
	var se *statusError
	if errors.As(err, &se) {
		return se.status
	}
	return 0
}

type apiClient struct {
	baseURL string
	timeout time.Duration
	http    *http.Client
}

func newAPIClient(baseURL string, timeout time.Duration, httpClient *http.Client) *apiClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &apiClient{baseURL: baseURL, timeout: timeout, http: httpClient}
}

type idResponse struct {
	ID string `json:"id"`
}

func (c *apiClient) createProduct(seller actor, price decimal.Decimal, stock int, col *collector) (string, error) {
	var out idResponse
	err := c.call("CreateProduct", seller, http.MethodPost, "/api/v1/products", map[string]any{
		"name":     "load-test product",
		"price":    price,
		"category": "load",
		"quantity": stock,
	}, &out, col)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("create product returned empty id")
	}
	return out.ID, nil
}

func (c *apiClient) addAddress(buyer actor, col *collector) (string, error) {
	var out idResponse
	err := c.call("AddAddress", buyer, http.MethodPost, "/api/v1/addresses", map[string]any{
		"name":        "load",
		"line1":       "1 Load Test St",
		"city":        "Loadville",
		"postal_code": "00000",
		"country":     "US",
	}, &out, col)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}

func (c *apiClient) createOrder(buyer actor, addressID, productID string, col *collector) (string, error) {
	var out idResponse
	err := c.call("CreateOrder", buyer, http.MethodPost, "/api/v1/orders", map[string]any{
		"address_id": addressID,
		"items":      []map[string]any{{"product_id": productID, "quantity": 1}},
	}, &out, col)
	if err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", errors.New("create order returned empty id")
	}
	return out.ID, nil
}

func (c *apiClient) confirmPayment(admin actor, orderID string, col *collector) error {
	return c.call("ConfirmPayment", admin, http.MethodPost, "/api/v1/orders/"+orderID+"/confirm-payment", nil, nil, col)
}

func (c *apiClient) cancelOrder(buyer actor, orderID string, col *collector) error {
	return c.call("CancelOrder", buyer, http.MethodPost, "/api/v1/orders/"+orderID+"/cancel",
		map[string]any{"reason": "load-cancel"}, nil, col)
}

// call выполняет запрос от имени who и учитывает его в col под именем method.
func (c *apiClient) call(method string, who actor, httpMethod, path string, body, out any, col *collector) error {
	start := time.Now()
	status, err := c.do(who, httpMethod, path, body, out)
	col.record(method, time.Since(start), status)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if !isSuccess(status) {
		return &statusError{method: method, status: status}
	}
	return nil
}

func (c *apiClient) do(who actor, method, path string, body, out any) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(httpapi.HeaderUserID, who.id)
	req.Header.Set(httpapi.HeaderUserRole, who.role)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) || out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}
