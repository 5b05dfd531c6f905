package providers

import (
	"errors"
	"fmt"
)

// ConfigurationError reports an unsupported provider or a missing credential.
// It is terminal and never retried.
type ConfigurationError struct {
	Reason string
	Hint   string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}

// ErrorKind classifies an LLMError.
type ErrorKind string

const (
	KindTransportExhausted  ErrorKind = "transport-exhausted"
	KindInvalidCredential   ErrorKind = "invalid-credential"
	KindPermissionDenied    ErrorKind = "permission-denied"
	KindQuotaExceeded       ErrorKind = "quota-exceeded"
	KindUnparseableResponse ErrorKind = "unparseable-response"
	KindProviderError       ErrorKind = "provider-error"
)

// LLMError is an unrecoverable failure talking to the provider.
type LLMError struct {
	Kind    ErrorKind
	Message string
	// Status is the HTTP status of the provider response, 0 when none was received.
	Status int
	// Body is a size-capped, credential-free dump of the response body. Only
	// set for unparseable responses.
	Body string
	Err  error
}

func (e *LLMError) Error() string {
	msg := e.Message
	if e.Status != 0 && e.Body != "" {
		msg = fmt.Sprintf("%s (status %d): %s", msg, e.Status, e.Body)
	} else if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LLMError) Unwrap() error { return e.Err }

// Hint returns remediation guidance for the error kind.
func (e *LLMError) Hint() string {
	switch e.Kind {
	case KindInvalidCredential:
		return "Check GOOGLE_API_KEY in the environment or .env file and make sure it is a valid Gemini API key."
	case KindPermissionDenied:
		return "Check that the API key is allowed to call the Gemini API."
	case KindQuotaExceeded:
		return "Try again later or upgrade the Gemini API plan."
	case KindTransportExhausted:
		return "The provider could not be reached; check network connectivity."
	default:
		return ""
	}
}

// KindOf returns the kind of the LLMError in err's chain, or "" if there is none.
func KindOf(err error) ErrorKind {
	var le *LLMError
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// IsAuthError reports whether err is a configuration or credential failure.
func IsAuthError(err error) bool {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return true
	}
	switch KindOf(err) {
	case KindInvalidCredential, KindPermissionDenied:
		return true
	}
	return false
}
