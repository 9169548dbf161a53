// Package gateway is the entry point used by callers: it owns the token provider, the
// WSFE client and the background renewal loop started when the first login fails.
package gateway

import (
	"context"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/renewal"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.gateway")

// Invoicer is the WSFE surface the gateway needs. *wsfe.Client implements it.
type Invoicer interface {
	Issue(ctx context.Context, req *wsfe.InvoiceRequest) (*wsfe.InvoiceResult, error)
	LastAuthorized(ctx context.Context, pointOfSale, documentType int) (int64, error)
	Query(ctx context.Context, documentType, pointOfSale int, number int64) (*wsfe.IssuedInvoice, error)
	Dummy(ctx context.Context) (*wsfe.ServerStatus, error)
}

// Status is the connectivity report used by health checks.
type Status struct {
	Connected  bool
	LastAuth   time.Time
	AppServer  string
	DbServer   string
	AuthServer string
	Error      string
}

type Gateway struct {
	tokens    *afip.TokenProvider
	invoicer  Invoicer
	env       afip.Environment
	scheduler *renewal.Scheduler
}

func New(tokens *afip.TokenProvider, invoicer Invoicer, env afip.Environment, opts ...renewal.Option) *Gateway {
	return &Gateway{
		tokens:    tokens,
		invoicer:  invoicer,
		env:       env,
		scheduler: renewal.NewScheduler(tokens, opts...),
	}
}

func (g *Gateway) Environment() afip.Environment { return g.env }

// Scheduler exposes the renewal loop, mainly for health reporting.
func (g *Gateway) Scheduler() *renewal.Scheduler { return g.scheduler }

// Startup tries to authenticate once. On failure the background renewal loop is
// started and the error returned for logging; the gateway stays usable.
func (g *Gateway) Startup(ctx context.Context) error {
	t, err := g.tokens.Authenticate(ctx, false)
	if err == nil {
		logger.Infof("WSAA authentication succeeded, ticket valid until %s", t.ExpiresAt.Format(time.RFC3339))
		return nil
	}
	if errors.Is(err, afip.ErrAlreadyAuthenticated) {
		logger.Warn("WSAA already holds a ticket issued to a previous session, retrying in background")
	} else {
		logger.Warnf("Could not authenticate at startup: %v", err)
	}
	g.scheduler.Start(ctx)
	return err
}

// Shutdown stops the renewal loop if it is running.
func (g *Gateway) Shutdown() {
	g.scheduler.Stop()
}

func (g *Gateway) Authenticate(ctx context.Context, force bool) (afip.Ticket, error) {
	return g.tokens.Authenticate(ctx, force)
}

// IssueInvoice submits req. A business rejection is returned as a result, never as an error.
func (g *Gateway) IssueInvoice(ctx context.Context, req *wsfe.InvoiceRequest) (*wsfe.InvoiceResult, error) {
	return g.invoicer.Issue(ctx, req)
}

// LookupLastSequence returns the last authorized number, or 0 when it cannot be fetched.
func (g *Gateway) LookupLastSequence(ctx context.Context, pointOfSale, documentType int) int64 {
	n, err := g.invoicer.LastAuthorized(ctx, pointOfSale, documentType)
	if err != nil {
		logger.Errorf("Could not fetch last authorized voucher for pos %d type %d: %v", pointOfSale, documentType, err)
		return 0
	}
	return n
}

func (g *Gateway) QueryInvoice(ctx context.Context, documentType, pointOfSale int, number int64) (*wsfe.IssuedInvoice, error) {
	return g.invoicer.Query(ctx, documentType, pointOfSale, number)
}

// CheckConnectivity authenticates if needed and calls FEDummy. It never fails;
// problems are reported through Status.
func (g *Gateway) CheckConnectivity(ctx context.Context) (st Status) {
	defer func() {
		st.LastAuth, _ = g.tokens.LastAuthentication()
	}()

	if _, err := g.tokens.EnsureValid(ctx); err != nil {
		logger.Errorf("Connectivity check: authentication failed: %v", err)
		st.Error = err.Error()
		return st
	}
	srv, err := g.invoicer.Dummy(ctx)
	if err != nil {
		logger.Errorf("Connectivity check: FEDummy failed: %v", err)
		st.Error = err.Error()
		return st
	}

	st.Connected = true
	st.AppServer, st.DbServer, st.AuthServer = srv.AppServer, srv.DbServer, srv.AuthServer
	return st
}
