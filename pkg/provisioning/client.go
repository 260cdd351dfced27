package provisioning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrNotConfigured is returned when the endpoint URL for a call is empty.
var ErrNotConfigured = errors.New("provisioning endpoint not configured")

// Config points the client at the hosted account functions.
type Config struct {
	CatechistURL string
	StudentURL   string
	ServiceKey   string
	Timeout      time.Duration
}

// CatechistAccountRequest creates a glv login for a catechist.
type CatechistAccountRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FullName  string `json:"full_name"`
	SaintName string `json:"saint_name,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
}

// CatechistAccount is the created catechist login.
type CatechistAccount struct {
	UserID string `json:"user_id"`
}

// StudentAccount is the created student login.
type StudentAccount struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
}

// Error carries a non-2xx response from a provisioning function.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("provisioning failed (%d): %s", e.Status, e.Message)
}

// Temporary reports whether retrying the call may succeed.
func (e *Error) Temporary() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Client calls the account provisioning functions with the service key.
type Client struct {
	cfg  Config
	http *http.Client
}

// NewClient constructs a client; a zero timeout defaults to 15s.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{cfg: cfg, http: httpClient}
}

// CreateCatechistAccount creates a login and assigns the glv role.
func (c *Client) CreateCatechistAccount(ctx context.Context, req CatechistAccountRequest) (*CatechistAccount, error) {
	var out CatechistAccount
	if err := c.post(ctx, c.cfg.CatechistURL, req, &out); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "response missing user_id"}
	}
	return &out, nil
}

// CreateStudentAccount creates a login keyed by the student id with the
// default password and links it to the student record.
func (c *Client) CreateStudentAccount(ctx context.Context, studentID string) (*StudentAccount, error) {
	var out StudentAccount
	if err := c.post(ctx, c.cfg.StudentURL, map[string]string{"student_id": studentID}, &out); err != nil {
		return nil, err
	}
	if out.UserID == "" {
		return nil, &Error{Status: http.StatusBadGateway, Message: "response missing user_id"}
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, url string, body, out interface{}) error {
	if url == "" {
		return ErrNotConfigured
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode provisioning request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build provisioning request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ServiceKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ServiceKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("call provisioning endpoint: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read provisioning response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &Error{Status: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode provisioning response: %w", err)
	}
	return nil
}

func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return fallback
}
