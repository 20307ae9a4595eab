package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
)

// TwilioVerifyClient implements PhoneVerifier against a Twilio-Verify-shaped
// REST API: form-encoded POSTs with basic auth, scoped to a Verify service.
type TwilioVerifyClient struct {
	baseURL    string
	serviceSID string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
}

// NewTwilioVerifyClient creates a client for the given Verify service.
// httpClient may be nil, in which case http.DefaultClient is used.
func NewTwilioVerifyClient(baseURL, serviceSID, apiKey, apiSecret string, httpClient *http.Client) *TwilioVerifyClient {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &TwilioVerifyClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceSID: serviceSID,
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		httpClient: httpClient,
	}
}

type verifyResponse struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// RequestVerification implements PhoneVerifier.
func (c *TwilioVerifyClient) RequestVerification(ctx context.Context, phoneNumber, channel string) (string, error) {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("Channel", channel)

	resp, err := c.post(ctx, "/v2/Services/"+url.PathEscape(c.serviceSID)+"/Verifications", form)
	if err != nil {
		return "", err
	}
	return resp.SID, nil
}

// ConfirmVerification implements PhoneVerifier.
func (c *TwilioVerifyClient) ConfirmVerification(ctx context.Context, phoneNumber, code string) (string, error) {
	form := url.Values{}
	form.Set("To", phoneNumber)
	form.Set("Code", code)

	resp, err := c.post(ctx, "/v2/Services/"+url.PathEscape(c.serviceSID)+"/VerificationCheck", form)
	if err != nil {
		return "", err
	}
	return resp.Status, nil
}

func (c *TwilioVerifyClient) post(ctx context.Context, endpoint string, form url.Values) (*verifyResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", stepauth.ErrProviderUnavailable, err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stepauth.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", stepauth.ErrProviderUnavailable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("endpoint", endpoint).
			Bytes("body", raw).Msg("Phone verification provider returned error status")
		return nil, fmt.Errorf("%w: status %d", stepauth.ErrProviderUnavailable, resp.StatusCode)
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", stepauth.ErrProviderUnavailable, err)
	}
	return &out, nil
}

var _ PhoneVerifier = (*TwilioVerifyClient)(nil)
