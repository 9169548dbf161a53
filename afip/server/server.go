// Package server exposes the gateway over HTTP with the JSON contract of the original
// invoicing sidecar.
package server

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/gateway"
	"github.com/blendpos/go-afip-client/afip/qr"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.server")

const (
	serviceName = "afip-sidecar"
	version     = "1.0.0"
	maxBody     = 1 << 20
)

// Service is what the HTTP layer needs from *gateway.Gateway.
type Service interface {
	Environment() afip.Environment
	Authenticate(ctx context.Context, force bool) (afip.Ticket, error)
	IssueInvoice(ctx context.Context, req *wsfe.InvoiceRequest) (*wsfe.InvoiceResult, error)
	CheckConnectivity(ctx context.Context) gateway.Status
	LookupLastSequence(ctx context.Context, pointOfSale, documentType int) int64
	QueryInvoice(ctx context.Context, documentType, pointOfSale int, number int64) (*wsfe.IssuedInvoice, error)
}

type Options struct {
	Addr    string
	Service Service
	// CUIT of the issuer, printed in QR links.
	CUIT string
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler
}

type handlers struct {
	svc  Service
	cuit string
}

func New(opts Options) (*Server, error) {
	if opts.Service == nil {
		return nil, errors.New("service is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8001"
	}

	h := &handlers{svc: opts.Service, cuit: opts.CUIT}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger)
	r.Use(chimw.Recoverer)

	r.Get("/", h.root)
	r.Get("/health", h.health)
	r.Post("/facturar", h.issue)
	r.Get("/ultimo-comprobante", h.lastSequence)
	r.Post("/auth", h.authenticate)
	r.Get("/comprobantes/{tipo}/{pv}/{nro}", h.query)
	r.Get("/comprobantes/{tipo}/{pv}/{nro}/qr.png", h.qrImage)

	return &Server{
		handler: r,
		httpServer: &http.Server{
			Addr:              opts.Addr,
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
			// WSFE calls can take a while; keep well above the SOAP client timeout.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  2 * time.Minute,
		},
	}, nil
}

func (s *Server) Handler() http.Handler { return s.handler }

// Run serves until ctx is cancelled, then shuts down within shutdownTimeout.
func (s *Server) Run(ctx context.Context, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (h *handlers) root(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("service")
		e.Str("BlendPOS AFIP Sidecar")
		e.FieldStart("version")
		e.Str(version)
		e.FieldStart("status")
		e.Str("running")
		e.FieldStart("endpoints")
		e.ObjStart()
		for _, ep := range [][2]string{
			{"health", "GET /health"},
			{"facturar", "POST /facturar"},
			{"ultimo_comprobante", "GET /ultimo-comprobante"},
			{"auth", "POST /auth"},
			{"comprobante", "GET /comprobantes/{tipo}/{pv}/{nro}"},
		} {
			e.FieldStart(ep[0])
			e.Str(ep[1])
		}
		e.ObjEnd()
		e.ObjEnd()
	})
}

func (h *handlers) health(w http.ResponseWriter, r *http.Request) {
	st := h.svc.CheckConnectivity(r.Context())
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("ok")
		e.Bool(true)
		e.FieldStart("service")
		e.Str(serviceName)
		e.FieldStart("mode")
		e.Str(h.svc.Environment().Name())
		e.FieldStart("afip_conectado")
		e.Bool(st.Connected)
		e.FieldStart("ultima_autenticacion")
		if st.LastAuth.IsZero() {
			e.Null()
		} else {
			e.Str(st.LastAuth.Format(time.RFC3339))
		}
		if st.Error != "" {
			e.FieldStart("error")
			e.Str(st.Error)
		}
		e.ObjEnd()
	})
}

func (h *handlers) issue(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	req, err := decodeInvoiceRequest(body)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	res, err := h.svc.IssueInvoice(r.Context(), req)
	if err != nil {
		writeError(w, statusFor(err, http.StatusServiceUnavailable), err)
		return
	}

	var qrURL string
	if res.Approved() {
		if p, err := qr.FromResult(h.cuit, req, res); err == nil {
			qrURL, _ = p.URL()
		} else {
			logger.Warnf("Could not build QR link for voucher %d: %v", res.SequenceNumber, err)
		}
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeInvoiceResult(e, res, qrURL) })
}

func (h *handlers) lastSequence(w http.ResponseWriter, r *http.Request) {
	pos, err := intParam(r.URL.Query().Get("punto_de_venta"), "punto_de_venta")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	typ, err := intParam(r.URL.Query().Get("tipo_comprobante"), "tipo_comprobante")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}

	last := h.svc.LookupLastSequence(r.Context(), int(pos), int(typ))
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("punto_de_venta")
		e.Int64(pos)
		e.FieldStart("tipo_comprobante")
		e.Int64(typ)
		e.FieldStart("ultimo_comprobante")
		e.Int64(last)
		e.ObjEnd()
	})
}

func (h *handlers) authenticate(w http.ResponseWriter, r *http.Request) {
	force, _ := strconv.ParseBool(r.URL.Query().Get("forzar"))

	t, err := h.svc.Authenticate(r.Context(), force)
	if err != nil {
		writeError(w, statusFor(err, http.StatusConflict), err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("autenticado")
		e.Bool(true)
		e.FieldStart("generado")
		e.Str(t.IssuedAt.Format(time.RFC3339))
		e.FieldStart("expiracion")
		e.Str(t.ExpiresAt.Format(time.RFC3339))
		e.ObjEnd()
	})
}

func (h *handlers) lookup(w http.ResponseWriter, r *http.Request) (*wsfe.IssuedInvoice, bool) {
	typ, err := intParam(chi.URLParam(r, "tipo"), "tipo")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	pos, err := intParam(chi.URLParam(r, "pv"), "pv")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}
	nro, err := intParam(chi.URLParam(r, "nro"), "nro")
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return nil, false
	}

	inv, err := h.svc.QueryInvoice(r.Context(), int(typ), int(pos), nro)
	if err != nil {
		writeError(w, statusFor(err, http.StatusServiceUnavailable), err)
		return nil, false
	}
	return inv, true
}

func (h *handlers) query(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeIssuedInvoice(e, inv) })
}

func (h *handlers) qrImage(w http.ResponseWriter, r *http.Request) {
	inv, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if inv.CAE == "" {
		writeError(w, http.StatusNotFound, errors.New("voucher has no CAE"))
		return
	}
	p, err := qr.FromIssued(h.cuit, inv)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}
	img, err := p.PNG()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	_, _ = w.Write(img)
}

func intParam(s, name string) (int64, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n <= 0 {
		return 0, &afip.ValidationError{Field: name, Message: "must be a positive integer"}
	}
	return n, nil
}
