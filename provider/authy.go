package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/domain"
)

const apiKeyHeader = "X-Authy-API-Key"

// AuthyClient implements SecondFactorProvider against an Authy-shaped REST
// API. One configured client is constructed at startup and shared across
// requests; tests substitute a fake via the SecondFactorProvider interface.
type AuthyClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewAuthyClient creates a client for the given base URL and API key.
// httpClient may be nil, in which case http.DefaultClient is used.
func NewAuthyClient(baseURL, apiKey string, httpClient *http.Client) *AuthyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &AuthyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

type authyUserResponse struct {
	User struct {
		ID json.Number `json:"id"`
	} `json:"user"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type authyDispatchResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type authyVerifyResponse struct {
	Success interface{} `json:"success"` // the API returns "true" as a string here
	Message string      `json:"message"`
}

type authyApprovalResponse struct {
	ApprovalRequest struct {
		UUID   string `json:"uuid"`
		Status string `json:"status"`
	} `json:"approval_request"`
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// RegisterUser implements SecondFactorProvider.
func (c *AuthyClient) RegisterUser(ctx context.Context, email, countryCode, phoneNumber string) (string, error) {
	form := url.Values{}
	form.Set("user[email]", email)
	form.Set("user[country_code]", countryCode)
	form.Set("user[cellphone]", phoneNumber)

	var resp authyUserResponse
	if err := c.do(ctx, http.MethodPost, "/protected/json/users/new", form, &resp); err != nil {
		return "", err
	}
	if !resp.Success || resp.User.ID.String() == "" {
		return "", fmt.Errorf("%w: user registration rejected", stepauth.ErrProviderUnavailable)
	}
	return resp.User.ID.String(), nil
}

// SendOTP implements SecondFactorProvider.
func (c *AuthyClient) SendOTP(ctx context.Context, secondFactorID string, channel OTPChannel, force bool) (*DispatchResult, error) {
	endpoint := "/protected/json/sms/" + url.PathEscape(secondFactorID)
	if channel == ChannelVoice {
		endpoint = "/protected/json/call/" + url.PathEscape(secondFactorID)
	}
	endpoint += "?force=" + strconv.FormatBool(force)

	var resp authyDispatchResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &DispatchResult{Success: resp.Success, Message: resp.Message}, nil
}

// VerifyOTP implements SecondFactorProvider. A token the provider rejects is
// reported through OTPVerification.Success, not as an error.
func (c *AuthyClient) VerifyOTP(ctx context.Context, secondFactorID, token string) (*OTPVerification, error) {
	endpoint := "/protected/json/verify/" + url.PathEscape(token) + "/" + url.PathEscape(secondFactorID)

	var resp authyVerifyResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return &OTPVerification{Success: truthy(resp.Success), Message: resp.Message}, nil
}

// CreateApprovalRequest implements SecondFactorProvider.
func (c *AuthyClient) CreateApprovalRequest(ctx context.Context, secondFactorID string, details ApprovalDetails, ttlSeconds int) (string, error) {
	form := url.Values{}
	form.Set("message", details.Message)
	form.Set("seconds_to_expire", strconv.Itoa(ttlSeconds))
	for k, v := range details.Visible {
		form.Set("details["+k+"]", v)
	}
	for k, v := range details.Hidden {
		form.Set("hidden_details["+k+"]", v)
	}

	endpoint := "/onetouch/json/users/" + url.PathEscape(secondFactorID) + "/approval_requests"

	var resp authyApprovalResponse
	if err := c.do(ctx, http.MethodPost, endpoint, form, &resp); err != nil {
		return "", err
	}
	if resp.ApprovalRequest.UUID == "" {
		return "", fmt.Errorf("%w: approval request rejected", stepauth.ErrProviderUnavailable)
	}
	return resp.ApprovalRequest.UUID, nil
}

// ApprovalStatus implements SecondFactorProvider.
func (c *AuthyClient) ApprovalStatus(ctx context.Context, approvalRequestID string) (domain.ApprovalStatus, error) {
	endpoint := "/onetouch/json/approval_requests/" + url.PathEscape(approvalRequestID)

	var resp authyApprovalResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", err
	}

	switch status := domain.ApprovalStatus(resp.ApprovalRequest.Status); status {
	case domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalDenied, domain.ApprovalExpired:
		return status, nil
	default:
		return "", fmt.Errorf("%w: unknown approval status %q", stepauth.ErrProviderUnavailable, resp.ApprovalRequest.Status)
	}
}

// do issues a request and decodes the JSON body into out. Non-2xx responses
// and transport failures map to ErrProviderUnavailable; the raw provider
// body is logged server-side only, never surfaced to callers.
func (c *AuthyClient) do(ctx context.Context, method, endpoint string, form url.Values, out interface{}) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, body)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", stepauth.ErrProviderUnavailable, err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", stepauth.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: reading response: %v", stepauth.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).
			Bytes("body", raw).Msg("Second factor provider returned error status")
		return fmt.Errorf("%w: status %d", stepauth.ErrProviderUnavailable, resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decoding response: %v", stepauth.ErrProviderUnavailable, err)
	}
	return nil
}

// truthy handles the provider's mixed bool/"true" success encodings.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return t == "true"
	default:
		return false
	}
}

var _ SecondFactorProvider = (*AuthyClient)(nil)
