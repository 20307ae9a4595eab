// Package provider contains the HTTP clients for the external second factor
// and phone verification services, behind interfaces so services can be
// tested against fakes.
package provider

import (
	"context"

	"github.com/pilab-dev/stepauth/domain"
)

// OTPChannel selects the delivery channel for one-time codes.
type OTPChannel string

const (
	ChannelSMS   OTPChannel = "sms"
	ChannelVoice OTPChannel = "voice"
)

// Valid reports whether the channel is one this service dispatches on.
func (c OTPChannel) Valid() bool {
	return c == ChannelSMS || c == ChannelVoice
}

// DispatchResult is the provider's acknowledgment of an OTP send.
type DispatchResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// OTPVerification is the provider's verdict on a submitted token.
// A wrong token is a reported failure, not a transport error.
type OTPVerification struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ApprovalDetails is the human-readable bundle shown on the user's device
// for a push approval request. Hidden fields are for provider-side auditing
// and are not displayed.
type ApprovalDetails struct {
	Visible map[string]string
	Hidden  map[string]string
	Message string
}

// SecondFactorProvider is the contract for the OTP / push approval service.
type SecondFactorProvider interface {
	// RegisterUser enrolls an identity and returns the provider-issued
	// second factor ID.
	RegisterUser(ctx context.Context, email, countryCode, phoneNumber string) (string, error)
	// SendOTP requests a one-time code on the given channel. force bypasses
	// the provider's app-installed suppression so a code is always delivered.
	SendOTP(ctx context.Context, secondFactorID string, channel OTPChannel, force bool) (*DispatchResult, error)
	// VerifyOTP checks a user-supplied token.
	VerifyOTP(ctx context.Context, secondFactorID, token string) (*OTPVerification, error)
	// CreateApprovalRequest creates a push approval request with the given
	// display details and TTL in seconds, returning the request identifier.
	CreateApprovalRequest(ctx context.Context, secondFactorID string, details ApprovalDetails, ttlSeconds int) (string, error)
	// ApprovalStatus reads the current state of a push approval request.
	ApprovalStatus(ctx context.Context, approvalRequestID string) (domain.ApprovalStatus, error)
}

// PhoneVerifier is the contract for the independent phone ownership check.
type PhoneVerifier interface {
	// RequestVerification asks the provider to deliver a verification code
	// and returns the provider's verification SID.
	RequestVerification(ctx context.Context, phoneNumber, channel string) (string, error)
	// ConfirmVerification submits a code; the returned status is "approved"
	// when the code matched.
	ConfirmVerification(ctx context.Context, phoneNumber, code string) (string, error)
}
