//nolint:varnamelen
package gin

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	stepauth "github.com/pilab-dev/stepauth"
	"github.com/pilab-dev/stepauth/provider"
	"github.com/pilab-dev/stepauth/services"
	"github.com/pilab-dev/stepauth/sessions"
)

// AuthAPI struct to hold dependencies.
type AuthAPI struct {
	auth       *services.AuthService
	twoFactor  *services.TwoFactorService
	phone      *services.PhoneService
	store      sessions.Store
	sessionTTL time.Duration
	secure     bool
}

// NewAuthAPI initializes the authentication API.
func NewAuthAPI(
	auth *services.AuthService,
	twoFactor *services.TwoFactorService,
	phone *services.PhoneService,
	store sessions.Store,
	sessionTTL time.Duration,
	secureCookies bool,
) *AuthAPI {
	return &AuthAPI{
		auth:       auth,
		twoFactor:  twoFactor,
		phone:      phone,
		store:      store,
		sessionTTL: sessionTTL,
		secure:     secureCookies,
	}
}

// RegisterRoutes registers the authentication routes.
func (a *AuthAPI) RegisterRoutes(e *gin.Engine) {
	api := e.Group("/api", SessionMiddleware(a.store, a.sessionTTL, a.secure))

	api.POST("/login", a.LoginHandler)
	api.POST("/logout", a.LogoutHandler)
	api.GET("/loggedin", a.StatusHandler)
	api.POST("/register", a.RegisterHandler)

	api.POST("/2fa/sms", a.dispatchOTPHandler(provider.ChannelSMS))
	api.POST("/2fa/voice", a.dispatchOTPHandler(provider.ChannelVoice))
	api.POST("/2fa/verify", a.VerifyOTPHandler)
	api.POST("/2fa/push", a.CreatePushHandler)
	api.GET("/2fa/push/status", a.PollPushHandler)
	api.POST("/2fa/push/callback", a.PushCallbackHandler)

	api.POST("/phone/request", a.RequestPhoneHandler)
	api.POST("/phone/verify", a.ConfirmPhoneHandler)
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password"`
}

// LoginHandler performs primary authentication and re-issues the session
// cookie with the regenerated identifier.
func (a *AuthAPI) LoginHandler(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username is required"})
		return
	}

	sess := sessionFromContext(c)
	if err := a.auth.Login(c.Request.Context(), sess, req.Username, req.Password); err != nil {
		writeError(c, err)
		return
	}

	setSessionCookie(c, sess, a.sessionTTL, a.secure)
	c.JSON(http.StatusOK, gin.H{"url": a.auth.Status(sess)})
}

// LogoutHandler destroys the session identity entirely.
func (a *AuthAPI) LogoutHandler(c *gin.Context) {
	sess := sessionFromContext(c)
	if err := a.auth.Logout(c.Request.Context(), sess); err != nil {
		writeError(c, err)
		return
	}

	c.SetCookie(SessionCookieName, "", -1, "/", "", a.secure, true)
	c.Status(http.StatusOK)
}

// StatusHandler reports where the caller should go next.
func (a *AuthAPI) StatusHandler(c *gin.Context) {
	sess := sessionFromContext(c)
	c.JSON(http.StatusOK, gin.H{"url": a.auth.Status(sess)})
}

type registerRequest struct {
	Username    string `json:"username" binding:"required"`
	Password    string `json:"password" binding:"required"`
	Email       string `json:"email" binding:"required"`
	CountryCode string `json:"country_code" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// RegisterHandler creates an identity and enrolls it with the second factor
// provider.
func (a *AuthAPI) RegisterHandler(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing required field"})
		return
	}

	sess := sessionFromContext(c)
	_, err := a.auth.Register(c.Request.Context(), sess, services.RegisterInput{
		Username:    req.Username,
		Password:    req.Password,
		Email:       req.Email,
		CountryCode: req.CountryCode,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	setSessionCookie(c, sess, a.sessionTTL, a.secure)
	c.JSON(http.StatusOK, gin.H{"url": a.auth.Status(sess)})
}

func (a *AuthAPI) dispatchOTPHandler(channel provider.OTPChannel) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := sessionFromContext(c)
		res, err := a.twoFactor.DispatchOTP(c.Request.Context(), sess, channel)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

type verifyOTPRequest struct {
	Token string `json:"token" binding:"required"`
}

// VerifyOTPHandler submits the OTP token. A provider-rejected token is a
// 200 with success=false, mirroring the provider's own contract.
func (a *AuthAPI) VerifyOTPHandler(c *gin.Context) {
	var req verifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "token is required"})
		return
	}

	sess := sessionFromContext(c)
	res, err := a.twoFactor.VerifyOTP(c.Request.Context(), sess, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// CreatePushHandler creates a push approval request for the session.
func (a *AuthAPI) CreatePushHandler(c *gin.Context) {
	sess := sessionFromContext(c)
	approvalID, err := a.twoFactor.CreatePushApproval(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"approval_request_id": approvalID,
		"poll_interval_sec":   int(services.PollInterval.Seconds()),
		"max_poll_attempts":   services.MaxPollAttempts,
	})
}

// PollPushHandler reads the pending approval's status.
func (a *AuthAPI) PollPushHandler(c *gin.Context) {
	sess := sessionFromContext(c)
	status, err := a.twoFactor.PollPushApproval(c.Request.Context(), sess)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "url": a.auth.Status(sess)})
}

type phoneRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Via         string `json:"via"`
	Token       string `json:"token"`
}

// RequestPhoneHandler starts the independent phone verification flow.
func (a *AuthAPI) RequestPhoneHandler(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	sid, err := a.phone.RequestVerification(c.Request.Context(), req.PhoneNumber, req.Via)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sid": sid})
}

// ConfirmPhoneHandler checks the phone verification code.
func (a *AuthAPI) ConfirmPhoneHandler(c *gin.Context) {
	var req phoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing fields"})
		return
	}

	sess := sessionFromContext(c)
	status, err := a.phone.ConfirmVerification(c.Request.Context(), sess, req.PhoneNumber, req.Token)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// writeError maps the error taxonomy onto HTTP statuses. Expected user
// failures are 4xx; provider trouble is a retryable 502. Raw provider error
// bodies never reach the caller.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, stepauth.ErrUserNotFound), errors.Is(err, stepauth.ErrInvalidCredential):
		c.JSON(http.StatusUnauthorized, gin.H{"error": stepauth.ErrInvalidCredential.Error()})
	case errors.Is(err, stepauth.ErrInvalidCode):
		c.JSON(http.StatusUnauthorized, gin.H{"error": stepauth.ErrInvalidCode.Error()})
	case errors.Is(err, stepauth.ErrUnauthorized), errors.Is(err, stepauth.ErrSessionNotFound):
		c.JSON(http.StatusUnauthorized, gin.H{"error": stepauth.ErrUnauthorized.Error()})
	case errors.Is(err, stepauth.ErrAuthenticityFailure):
		c.JSON(http.StatusUnauthorized, gin.H{"error": stepauth.ErrAuthenticityFailure.Error()})
	case errors.Is(err, stepauth.ErrMissingField):
		c.JSON(http.StatusBadRequest, gin.H{"error": stepauth.ErrMissingField.Error()})
	case errors.Is(err, stepauth.ErrNoPendingRequest):
		c.JSON(http.StatusNotFound, gin.H{"error": stepauth.ErrNoPendingRequest.Error()})
	case errors.Is(err, stepauth.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": stepauth.ErrUserExists.Error()})
	case errors.Is(err, stepauth.ErrProviderUnavailable):
		c.JSON(http.StatusBadGateway, gin.H{"error": stepauth.ErrProviderUnavailable.Error()})
	default:
		log.Error().Err(err).Msg("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
