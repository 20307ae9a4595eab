package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

var (
	LoginSuccessTotal      prometheus.Counter
	LoginFailureTotal      prometheus.Counter
	UserRegisteredTotal    prometheus.Counter
	OTPDispatchedTotal     prometheus.Counter
	OTPVerifiedTotal       prometheus.Counter
	OTPRejectedTotal       prometheus.Counter
	PushCreatedTotal       prometheus.Counter
	PushResolvedTotal      prometheus.Counter
	CallbackAcceptedTotal  prometheus.Counter
	CallbackRejectedTotal  prometheus.Counter
	PhoneVerifiedTotal     prometheus.Counter
)

// InitCustomMetrics initializes and registers custom Prometheus metrics.
// It should be called once at application startup.
func InitCustomMetrics(reg prometheus.Registerer) {
	LoginSuccessTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_logins_success_total",
		Help: "Total number of successful primary authentications.",
	})
	LoginFailureTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_logins_failure_total",
		Help: "Total number of failed primary authentications.",
	})
	UserRegisteredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_users_registered_total",
		Help: "Total number of users registered.",
	})
	OTPDispatchedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_otp_dispatched_total",
		Help: "Total number of OTP codes dispatched (sms and voice).",
	})
	OTPVerifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_otp_verified_total",
		Help: "Total number of OTP tokens verified successfully.",
	})
	OTPRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_otp_rejected_total",
		Help: "Total number of OTP tokens rejected by the provider.",
	})
	PushCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_push_created_total",
		Help: "Total number of push approval requests created.",
	})
	PushResolvedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_push_resolved_total",
		Help: "Total number of push approval requests resolved (any outcome).",
	})
	CallbackAcceptedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_callback_accepted_total",
		Help: "Total number of provider callbacks passing signature verification.",
	})
	CallbackRejectedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_callback_rejected_total",
		Help: "Total number of provider callbacks rejected as inauthentic.",
	})
	PhoneVerifiedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "stepauth_phone_verified_total",
		Help: "Total number of phone numbers verified.",
	})

	if reg == nil {
		log.Error().Msg("Prometheus registry is nil, cannot register custom metrics.")
		return
	}

	counters := []prometheus.Counter{
		LoginSuccessTotal, LoginFailureTotal, UserRegisteredTotal,
		OTPDispatchedTotal, OTPVerifiedTotal, OTPRejectedTotal,
		PushCreatedTotal, PushResolvedTotal,
		CallbackAcceptedTotal, CallbackRejectedTotal, PhoneVerifiedTotal,
	}
	for _, c := range counters {
		if err := reg.Register(c); err != nil {
			log.Warn().Err(err).Msg("Failed to register metric")
		}
	}
	log.Info().Msg("Custom Prometheus metrics registered.")
}
