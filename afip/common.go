package afip

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip")

// Credentials identify the issuing taxpayer. Fixed for the process lifetime.
type Credentials struct {
	CUIT        string
	CertPath    string
	KeyPath     string
	KeyPassword []byte
	Environment Environment
}

type requestIDKey struct{}

func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(requestIDKey{}).(string)
	return v, ok && v != ""
}

var (
	// ErrConfiguration marks missing or unusable certificate, key or settings.
	ErrConfiguration = errors.New("afip configuration error")
	// ErrAlreadyAuthenticated is the recoverable WSAA conflict: a ticket is still active remotely.
	ErrAlreadyAuthenticated = errors.New("afip ticket already active")
	ErrAuthentication       = errors.New("afip authentication failed")
	ErrTechnical            = errors.New("afip communication failure")
	ErrValidation           = errors.New("invalid invoice request")
	ErrNoTicket             = errors.New("no access ticket")
)

// ConfigError names the setting that prevents authentication.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }

func (e *ConfigError) Unwrap() error { return e.Err }

// AuthError carries the remote WSAA diagnostic.
type AuthError struct {
	Kind    error // ErrAlreadyAuthenticated or ErrAuthentication
	Code    string
	Message string
	Err     error
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%v: %s: %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%v: %s", e.Kind, e.Message)
}

func (e *AuthError) Is(target error) bool { return target == e.Kind }

func (e *AuthError) Unwrap() error { return e.Err }

// Conflict reports whether the error is the already-authenticated condition.
func (e *AuthError) Conflict() bool { return e.Kind == ErrAlreadyAuthenticated }

// TechnicalError wraps a transport or SOAP failure talking to WSFE.
type TechnicalError struct {
	Op  string
	Err error
}

func (e *TechnicalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TechnicalError) Is(target error) bool { return target == ErrTechnical }

func (e *TechnicalError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }
