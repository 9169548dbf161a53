package wsfe

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/mutex"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.wsfe")

const Namespace = "http://ar.gov.afip.dif.FEV1/"

var ErrNotFound = errors.New("voucher not found")

// TicketSource hands out WSAA tickets. *afip.TokenProvider implements it.
type TicketSource interface {
	EnsureValid(ctx context.Context) (afip.Ticket, error)
	Refresh(ctx context.Context, stale afip.Ticket) (afip.Ticket, error)
}

// ServiceError carries the Errors block of a WSFE response.
type ServiceError struct {
	Op     string
	Errors []Observation
}

func (e *ServiceError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, o := range e.Errors {
		parts = append(parts, fmt.Sprintf("%d: %s", o.Code, o.Message))
	}
	return e.Op + " returned errors: " + strings.Join(parts, "; ")
}

type sequenceKey struct {
	pointOfSale  int
	documentType int
}

type Client struct {
	soap      *soap.Client
	tickets   TicketSource
	cuit      string
	reprocess bool
	now       func() time.Time

	sequences mutex.KeyedMutex[sequenceKey]
}

type Option func(*Client)

// WithReprocess recovers the CAE of a voucher that was already authorized when
// WSFE answers 10016 for the number just submitted.
func WithReprocess(enabled bool) Option {
	return func(c *Client) { c.reprocess = enabled }
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

func NewClient(endpoint, cuit string, tickets TicketSource, httpClient *http.Client, opts ...Option) *Client {
	c := &Client{
		soap:    soap.NewClient(endpoint, httpClient),
		tickets: tickets,
		cuit:    cuit,
		now:     time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Issue requests a CAE for r. Invalid requests fail with *afip.ValidationError before any
// network call. A rejection by AFIP is returned as a result with Outcome Rejected.
func (c *Client) Issue(ctx context.Context, req *InvoiceRequest) (*InvoiceResult, error) {
	r := req.withDefaults()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	if r.IssuerCUIT != "" && r.IssuerCUIT != c.cuit {
		return nil, invalid("cuit_emisor", "does not match the configured issuer")
	}

	log := logger.WithFields(logrus.Fields{
		"attempt": uuid.NewString(),
		"pos":     r.PointOfSale,
		"type":    r.DocumentType,
		"total":   r.Total.StringFixed(2),
	})
	if id, ok := afip.RequestIDFromContext(ctx); ok {
		log = log.WithField("request_id", id)
	}
	recipient := r.RecipientName
	if recipient == "" {
		recipient = "CONSUMIDOR FINAL"
	}
	log.Infof("Requesting CAE for %s", recipient)

	if _, err := c.ticket(ctx); err != nil {
		return nil, err
	}

	key := sequenceKey{r.PointOfSale, r.DocumentType}
	c.sequences.Lock(key)
	defer c.sequences.Unlock(key)

	last, err := c.LastAuthorized(ctx, r.PointOfSale, r.DocumentType)
	if err != nil {
		log.Warnf("Last authorized lookup failed, assuming 0: %v", err)
		last = 0
	}
	number := last + 1
	issueDate := c.now().In(afip.ArgentinaTime)

	res, err := c.invoke(ctx, "FECAESolicitar", func(op *etree.Element) {
		BuildCAERequest(op, &r, number, issueDate)
	})
	if err != nil {
		log.Errorf("FECAESolicitar failed: %v", err)
		return nil, err
	}

	result := NormalizeCAEResult(res)
	if result.SequenceNumber == 0 {
		result.SequenceNumber = number
	}
	if result.IssueDate == "" {
		result.IssueDate = issueDate.Format(dateLayout)
	}
	if result.PointOfSale == 0 {
		result.PointOfSale = r.PointOfSale
	}
	if result.DocumentType == 0 {
		result.DocumentType = r.DocumentType
	}

	if c.reprocess && result.Outcome == Rejected && hasCode(result.Observations, CodeSequenceMismatch) {
		if recovered := c.recoverIssued(ctx, &r, number, log); recovered != nil {
			return recovered, nil
		}
		result.Reprocess = "N"
	}

	if result.Outcome == Approved {
		log.Infof("CAE %s obtained for number %d, expires %s", result.CAE, result.SequenceNumber, result.CAEExpiry)
	} else {
		log.Warnf("Voucher %d not approved: outcome %s, %d observations", result.SequenceNumber, result.Outcome, len(result.Observations))
	}
	return result, nil
}

// recoverIssued looks up number and returns it as approved when it matches r.
func (c *Client) recoverIssued(ctx context.Context, r *InvoiceRequest, number int64, log *logrus.Entry) *InvoiceResult {
	inv, err := c.Query(ctx, r.DocumentType, r.PointOfSale, number)
	if err != nil {
		log.Infof("Reprocess: voucher %d not recoverable: %v", number, err)
		return nil
	}
	if inv.CAE == "" || inv.EmissionType != "CAE" {
		return nil
	}
	if !inv.Total.Equal(r.Total.Round(2)) || inv.RecipientDocNumber != r.RecipientDocNumber || inv.RecipientDocType != r.RecipientDocType {
		log.Warnf("Reprocess: voucher %d exists but differs from the request", number)
		return nil
	}
	log.Infof("Reprocess: recovered CAE %s for voucher %d", inv.CAE, number)
	return &InvoiceResult{
		Outcome:        Approved,
		PointOfSale:    r.PointOfSale,
		DocumentType:   r.DocumentType,
		SequenceNumber: number,
		IssueDate:      inv.IssueDate,
		CAE:            inv.CAE,
		CAEExpiry:      inv.CAEExpiry,
		Observations:   []Observation{},
		Events:         []Observation{},
		Reprocess:      "S",
	}
}

// LastAuthorized returns the last authorized number for a point of sale and voucher type.
func (c *Client) LastAuthorized(ctx context.Context, pointOfSale, documentType int) (int64, error) {
	const op = "FECompUltimoAutorizado"
	res, err := c.invoke(ctx, op, func(el *etree.Element) {
		soap.AddText(el, "PtoVta", strconv.Itoa(pointOfSale))
		soap.AddText(el, "CbteTipo", strconv.Itoa(documentType))
	})
	if err != nil {
		return 0, err
	}
	if errs := Observations(res.Get("Errors")); len(errs) > 0 {
		return 0, &afip.TechnicalError{Op: op, Err: &ServiceError{Op: op, Errors: errs}}
	}
	n, err := strconv.ParseInt(strings.TrimSpace(soap.TextOf(res.Get("CbteNro"))), 10, 64)
	if err != nil {
		return 0, &afip.TechnicalError{Op: op, Err: errors.Wrap(err, "parse CbteNro")}
	}
	return n, nil
}

// Query fetches a voucher already recorded by AFIP. ErrNotFound when it does not exist.
func (c *Client) Query(ctx context.Context, documentType, pointOfSale int, number int64) (*IssuedInvoice, error) {
	const op = "FECompConsultar"
	res, err := c.invoke(ctx, op, func(el *etree.Element) {
		req := el.CreateElement("FeCompConsReq")
		soap.AddText(req, "CbteTipo", strconv.Itoa(documentType))
		soap.AddText(req, "CbteNro", strconv.FormatInt(number, 10))
		soap.AddText(req, "PtoVta", strconv.Itoa(pointOfSale))
	})
	if err != nil {
		return nil, err
	}

	errs := Observations(res.Get("Errors"))
	if hasCode(errs, CodeNoResults) {
		return nil, ErrNotFound
	}
	if len(errs) > 0 {
		return nil, &afip.TechnicalError{Op: op, Err: &ServiceError{Op: op, Errors: errs}}
	}

	get, ok := soap.AsRecord(res.Get("ResultGet"))
	if !ok {
		return nil, ErrNotFound
	}
	text := func(k string) string { return soap.TextOf(get.Get(k)) }

	return &IssuedInvoice{
		DocumentType:       atoi(text("CbteTipo")),
		PointOfSale:        atoi(text("PtoVta")),
		Number:             atoi64(text("CbteDesde")),
		Concept:            atoi(text("Concepto")),
		RecipientDocType:   atoi(text("DocTipo")),
		RecipientDocNumber: text("DocNro"),
		IssueDate:          text("CbteFch"),
		Total:              parseAmount(text("ImpTotal")),
		Net:                parseAmount(text("ImpNeto")),
		VAT:                parseAmount(text("ImpIVA")),
		Currency:           text("MonId"),
		ExchangeRate:       parseAmount(text("MonCotiz")),
		Outcome:            Outcome(text("Resultado")),
		CAE:                text("CodAutorizacion"),
		CAEExpiry:          text("FchVto"),
		EmissionType:       text("EmisionTipo"),
		Observations:       Observations(get.Get("Observaciones")),
	}, nil
}

// Dummy checks the WSFE infrastructure. It needs no ticket.
func (c *Client) Dummy(ctx context.Context) (*ServerStatus, error) {
	res, err := c.call(ctx, "FEDummy", afip.Ticket{}, nil)
	if err != nil {
		return nil, err
	}
	return &ServerStatus{
		AppServer:  soap.TextOf(res.Get("AppServer")),
		DbServer:   soap.TextOf(res.Get("DbServer")),
		AuthServer: soap.TextOf(res.Get("AuthServer")),
	}, nil
}

// ticket gets a valid ticket, retrying a failed login once.
func (c *Client) ticket(ctx context.Context) (afip.Ticket, error) {
	t, err := c.tickets.EnsureValid(ctx)
	if err == nil {
		return t, nil
	}
	logger.Warnf("Could not obtain access ticket, authenticating again: %v", err)
	return c.tickets.Refresh(ctx, afip.Ticket{})
}

// invoke runs an authenticated operation. When WSFE rejects the ticket the client logs
// in again and repeats the operation once.
func (c *Client) invoke(ctx context.Context, operation string, build func(*etree.Element)) (*soap.Record, error) {
	t, err := c.ticket(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.call(ctx, operation, t, build)
	if err != nil {
		return nil, err
	}

	if errs := Observations(res.Get("Errors")); hasCode(errs, CodeTokenRejected, CodeCUITNotInToken) {
		logger.Warnf("%s: access ticket rejected (%s), authenticating again", operation, (&ServiceError{Op: operation, Errors: errs}).Error())
		t, err = c.tickets.Refresh(ctx, t)
		if err != nil {
			return nil, err
		}
		return c.call(ctx, operation, t, build)
	}
	return res, nil
}

func (c *Client) call(ctx context.Context, operation string, t afip.Ticket, build func(*etree.Element)) (*soap.Record, error) {
	doc, op := soap.NewRequest(Namespace, operation)
	if !t.IsZero() {
		auth := op.CreateElement("Auth")
		soap.AddText(auth, "Token", t.Token)
		soap.AddText(auth, "Sign", t.Sign)
		soap.AddText(auth, "Cuit", c.cuit)
	}
	if build != nil {
		build(op)
	}

	resp, err := c.soap.Call(ctx, Namespace+operation, doc)
	if err != nil {
		return nil, &afip.TechnicalError{Op: operation, Err: err}
	}

	result := soap.Child(resp, operation+"Result")
	if result == nil {
		return nil, &afip.TechnicalError{Op: operation, Err: errors.Errorf("response without %sResult", operation)}
	}
	rec, ok := soap.Decode(result).(*soap.Record)
	if !ok {
		rec = soap.NewRecord()
	}
	return rec, nil
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}
