// Package menuservice talks to the external ordering backend that owns menu
// browsing and cart math. Responses are a union: either a structured payload
// or a plain text string to relay to the customer verbatim.
package menuservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zerodha/logf"
)

// Client is the menu-service HTTP client
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Log        logf.Logger
}

// New creates a new menu-service client
func New(baseURL, apiKey string, timeout time.Duration, log logf.Logger) *Client {
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Log: log,
	}
}

// ListRow is one row of a list-message skeleton. IDs may contain
// {tableName} and {actionId} placeholders for the caller to fill in.
type ListRow struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// ListSection groups list rows under a title
type ListSection struct {
	Title string    `json:"title,omitempty"`
	Rows  []ListRow `json:"rows"`
}

// ListMessage is a provider-native list-message skeleton returned for a
// category browse.
type ListMessage struct {
	Body     string        `json:"body"`
	Footer   string        `json:"footer,omitempty"`
	Button   string        `json:"button,omitempty"`
	Sections []ListSection `json:"sections"`
}

// MenusResponse is the union result of a category browse
type MenusResponse struct {
	Text string       `json:"text,omitempty"`
	List *ListMessage `json:"list,omitempty"`
}

// CartItem is one line of a cart
type CartItem struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Qty   int     `json:"qty"`
	Price float64 `json:"price"`
}

// Cart is the backend-computed cart state
type Cart struct {
	Items []CartItem `json:"items"`
	Total float64    `json:"total"`
}

// ButtonSpec is a suggested next-step button. IDs may contain {tableName}
// and {actionId} placeholders.
type ButtonSpec struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// CartResponse is the union result of a cart operation
type CartResponse struct {
	Text    string       `json:"text,omitempty"`
	Cart    *Cart        `json:"cart,omitempty"`
	Buttons []ButtonSpec `json:"buttons,omitempty"`
}

// ConfirmResponse is the result of finalizing an order
type ConfirmResponse struct {
	Text    string `json:"text,omitempty"`
	OrderID string `json:"order_id,omitempty"`
}

// APIError is a structured error from the menu service
type APIError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("menu service error %d: %s", e.Code, e.Message)
}

// doRequest performs a request and returns the raw response body
func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr APIError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			if apiErr.Code == 0 {
				apiErr.Code = resp.StatusCode
			}
			return nil, &apiErr
		}
		return nil, fmt.Errorf("menu service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// looksLikeJSON reports whether a response body is a JSON object
func looksLikeJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// GetMenus fetches the items of a category as a list-message skeleton, or a
// plain text string when the backend has nothing structured to say.
func (c *Client) GetMenus(ctx context.Context, chatbotID, categoryID string) (*MenusResponse, error) {
	path := fmt.Sprintf("/chatbots/%s/categories/%s/menus", chatbotID, categoryID)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if !looksLikeJSON(respBody) {
		return &MenusResponse{Text: strings.TrimSpace(string(respBody))}, nil
	}

	var resp MenusResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse menus response: %w", err)
	}

	return &resp, nil
}

// MenuItem is one item's detail record
type MenuItem struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	ImageURL    string  `json:"image_url,omitempty"`
}

// GetMenuItem fetches a single item's detail. A 404 from the backend comes
// back as a nil item with a nil error.
func (c *Client) GetMenuItem(ctx context.Context, chatbotID, menuID, categoryID string) (*MenuItem, error) {
	path := fmt.Sprintf("/chatbots/%s/categories/%s/menus/%s", chatbotID, categoryID, menuID)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}

	var item MenuItem
	if err := json.Unmarshal(respBody, &item); err != nil {
		return nil, fmt.Errorf("failed to parse menu item response: %w", err)
	}
	if item.ID == "" {
		return nil, nil
	}

	return &item, nil
}

// AddToCart adds an item to the chatbot's cart. Quantity and pricing math
// stay on the backend; the response carries the recomputed cart.
func (c *Client) AddToCart(ctx context.Context, chatbotID, menuID string, qty int) (*CartResponse, error) {
	if qty < 1 {
		qty = 1
	}

	path := fmt.Sprintf("/chatbots/%s/cart", chatbotID)
	payload := map[string]interface{}{
		"menu_id":  menuID,
		"quantity": qty,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	if !looksLikeJSON(respBody) {
		return &CartResponse{Text: strings.TrimSpace(string(respBody))}, nil
	}

	var resp CartResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse cart response: %w", err)
	}

	return &resp, nil
}

// GetCart fetches the current cart state
func (c *Client) GetCart(ctx context.Context, chatbotID string) (*CartResponse, error) {
	path := fmt.Sprintf("/chatbots/%s/cart", chatbotID)

	respBody, err := c.doRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	if !looksLikeJSON(respBody) {
		return &CartResponse{Text: strings.TrimSpace(string(respBody))}, nil
	}

	var resp CartResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse cart response: %w", err)
	}

	return &resp, nil
}

// ConfirmOrder finalizes the cart into an order for the given table
func (c *Client) ConfirmOrder(ctx context.Context, chatbotID, tableName string) (*ConfirmResponse, error) {
	path := fmt.Sprintf("/chatbots/%s/orders", chatbotID)
	payload := map[string]interface{}{
		"table_name": tableName,
	}

	respBody, err := c.doRequest(ctx, http.MethodPost, path, payload)
	if err != nil {
		return nil, err
	}

	if !looksLikeJSON(respBody) {
		return &ConfirmResponse{Text: strings.TrimSpace(string(respBody))}, nil
	}

	var resp ConfirmResponse
	if err := json.Unmarshal(respBody, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse confirm response: %w", err)
	}

	return &resp, nil
}
