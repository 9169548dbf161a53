// Package qr builds the verification QR code AFIP requires on printed vouchers (RG 4892).
package qr

import (
	"encoding/base64"
	"strconv"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/blendpos/go-afip-client/png"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.qr")

const BaseURL = "https://www.afip.gob.ar/fe/qr/?p="

// Payload is the data encoded in the QR link. Only authorized vouchers have one.
type Payload struct {
	IssueDate          time.Time
	CUIT               string
	PointOfSale        int
	DocumentType       int
	Number             int64
	Total              decimal.Decimal
	Currency           string
	ExchangeRate       decimal.Decimal
	RecipientDocType   int
	RecipientDocNumber string
	CAE                string
}

// FromIssued builds the payload for a voucher fetched with FECompConsultar.
func FromIssued(cuit string, inv *wsfe.IssuedInvoice) (Payload, error) {
	date, err := time.ParseInLocation("20060102", inv.IssueDate, afip.ArgentinaTime)
	if err != nil {
		return Payload{}, errors.Wrap(err, "parse issue date")
	}
	return Payload{
		IssueDate:          date,
		CUIT:               cuit,
		PointOfSale:        inv.PointOfSale,
		DocumentType:       inv.DocumentType,
		Number:             inv.Number,
		Total:              inv.Total,
		Currency:           inv.Currency,
		ExchangeRate:       inv.ExchangeRate,
		RecipientDocType:   inv.RecipientDocType,
		RecipientDocNumber: inv.RecipientDocNumber,
		CAE:                inv.CAE,
	}, nil
}

// FromResult builds the payload right after issuing req.
func FromResult(cuit string, req *wsfe.InvoiceRequest, res *wsfe.InvoiceResult) (Payload, error) {
	if !res.Approved() {
		return Payload{}, errors.New("voucher has no CAE")
	}
	date, err := time.ParseInLocation("20060102", res.IssueDate, afip.ArgentinaTime)
	if err != nil {
		return Payload{}, errors.Wrap(err, "parse issue date")
	}
	return Payload{
		IssueDate:          date,
		CUIT:               cuit,
		PointOfSale:        res.PointOfSale,
		DocumentType:       res.DocumentType,
		Number:             res.SequenceNumber,
		Total:              req.Total,
		Currency:           req.Currency,
		ExchangeRate:       req.ExchangeRate,
		RecipientDocType:   req.RecipientDocType,
		RecipientDocNumber: req.RecipientDocNumber,
		CAE:                res.CAE,
	}, nil
}

// JSON returns the payload document before base64 encoding.
func (p Payload) JSON() ([]byte, error) {
	cuit, err := strconv.ParseInt(p.CUIT, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "cuit")
	}
	cae, err := strconv.ParseInt(p.CAE, 10, 64)
	if err != nil {
		return nil, errors.Wrap(err, "cae")
	}
	currency := p.Currency
	if currency == "" {
		currency = wsfe.DefaultCurrency
	}
	rate := p.ExchangeRate
	if rate.IsZero() {
		rate = decimal.NewFromInt(1)
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("ver")
	e.Int(1)
	e.FieldStart("fecha")
	e.Str(p.IssueDate.Format("2006-01-02"))
	e.FieldStart("cuit")
	e.Int64(cuit)
	e.FieldStart("ptoVta")
	e.Int(p.PointOfSale)
	e.FieldStart("tipoCmp")
	e.Int(p.DocumentType)
	e.FieldStart("nroCmp")
	e.Int64(p.Number)
	e.FieldStart("importe")
	e.Num(jx.Num(p.Total.String()))
	e.FieldStart("moneda")
	e.Str(currency)
	e.FieldStart("ctz")
	e.Num(jx.Num(rate.String()))
	if p.RecipientDocType > 0 {
		e.FieldStart("tipoDocRec")
		e.Int(p.RecipientDocType)
	}
	if n, err := strconv.ParseInt(p.RecipientDocNumber, 10, 64); err == nil && n > 0 {
		e.FieldStart("nroDocRec")
		e.Int64(n)
	}
	e.FieldStart("tipoCodAut")
	e.Str("E")
	e.FieldStart("codAut")
	e.Int64(cae)
	e.ObjEnd()
	return e.Bytes(), nil
}

// URL returns the verification link printed under the QR code.
func (p Payload) URL() (string, error) {
	b, err := p.JSON()
	if err != nil {
		return "", err
	}
	return BaseURL + base64.StdEncoding.EncodeToString(b), nil
}

// PNG renders the verification link as a QR image.
func (p Payload) PNG() ([]byte, error) {
	u, err := p.URL()
	if err != nil {
		return nil, err
	}
	logger.Debugf("QR link: %s", u)
	return png.Qr(u)
}
