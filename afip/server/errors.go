package server

import (
	"net/http"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// statusFor maps the error taxonomy onto HTTP. conflict is the status used for
// ErrAlreadyAuthenticated, which only /auth reports as 409.
func statusFor(err error, conflict int) int {
	switch {
	case errors.Is(err, afip.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, afip.ErrConfiguration):
		return http.StatusInternalServerError
	case errors.Is(err, afip.ErrAlreadyAuthenticated):
		return conflict
	case errors.Is(err, afip.ErrAuthentication):
		return http.StatusServiceUnavailable
	case errors.Is(err, wsfe.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadGateway
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("detail")
		e.Str(err.Error())

		var ve *afip.ValidationError
		if errors.As(err, &ve) {
			e.FieldStart("field")
			e.Str(ve.Field)
		}
		var ae *afip.AuthError
		if errors.As(err, &ae) && ae.Code != "" {
			e.FieldStart("code")
			e.Str(ae.Code)
		}
		e.ObjEnd()
	})
}

func writeJSON(w http.ResponseWriter, status int, write func(e *jx.Encoder)) {
	var e jx.Encoder
	write(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
