package afip

import (
	"context"
	"os"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorTaxonomy(t *testing.T) {
	cfg := &ConfigError{Field: "AFIP_CERT_PATH", Err: os.ErrNotExist}
	assert.True(t, errors.Is(cfg, ErrConfiguration))
	assert.True(t, errors.Is(cfg, os.ErrNotExist))
	assert.False(t, errors.Is(cfg, ErrAuthentication))

	conflict := &AuthError{Kind: ErrAlreadyAuthenticated, Code: "coe.alreadyAuthenticated", Message: "TA valido"}
	assert.True(t, conflict.Conflict())
	assert.True(t, errors.Is(errors.Wrap(conflict, "startup"), ErrAlreadyAuthenticated))
	assert.False(t, errors.Is(conflict, ErrAuthentication))

	var ae *AuthError
	assert.True(t, errors.As(errors.Wrap(conflict, "x"), &ae))
	assert.Equal(t, "coe.alreadyAuthenticated", ae.Code)

	tech := &TechnicalError{Op: "FECAESolicitar", Err: context.DeadlineExceeded}
	assert.True(t, errors.Is(tech, ErrTechnical))
	assert.True(t, errors.Is(tech, context.DeadlineExceeded))

	v := &ValidationError{Field: "importe_total", Message: "does not match"}
	assert.True(t, errors.Is(v, ErrValidation))
	assert.Equal(t, "importe_total: does not match", v.Error())
}

func TestRequestIDContext(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	id, ok := RequestIDFromContext(ContextWithRequestID(context.Background(), "abc"))
	assert.True(t, ok)
	assert.Equal(t, "abc", id)
}
