package entities

import "errors"

// Domain errors
var (
	// User errors
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrInvalidEmail      = errors.New("invalid email")
	ErrInvalidName       = errors.New("invalid name")

	// OAuth errors
	ErrOAuthProviderNotSupported = errors.New("oauth provider not supported")
	ErrOAuthStateMismatch        = errors.New("oauth state mismatch")
	ErrOAuthCodeInvalid          = errors.New("oauth code invalid")

	// Session errors
	ErrSessionNotFound = errors.New("session not found")
	ErrSessionExpired  = errors.New("session expired")
	ErrInvalidToken    = errors.New("invalid token")

	// Decision errors
	ErrDecisionNotFound         = errors.New("decision not found")
	ErrDecisionMissingTitle     = errors.New("decision title is required")
	ErrDecisionMissingOutcome   = errors.New("final decision text is required")
	ErrDecisionMissingSourceKey = errors.New("decision source key is required")
	ErrInvalidSource            = errors.New("invalid decision source")
	ErrInvalidRating            = errors.New("rating must be between 1 and 5")

	// Meeting errors
	ErrMeetingNotFound = errors.New("meeting not found")

	// Integration errors
	ErrIntegrationNotFound = errors.New("integration not found")

	// Webhook errors
	ErrWebhookLogNotFound = errors.New("webhook log not found")

	// Generic errors
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidRequest = errors.New("invalid request")
)
