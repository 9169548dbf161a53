package wsfe

import (
	"github.com/blendpos/go-afip-client/afip"
	"github.com/shopspring/decimal"
)

var totalTolerance = decimal.New(1, -2)

// Validate checks the request locally. It never touches the network.
func (r *InvoiceRequest) Validate() error {
	if r.IssuerCUIT != "" {
		if !digitsOnly(r.IssuerCUIT) {
			return invalid("cuit_emisor", "must contain digits only, without dashes or dots")
		}
		if len(r.IssuerCUIT) != 11 {
			return invalid("cuit_emisor", "must have 11 digits")
		}
	}
	if r.PointOfSale < 1 || r.PointOfSale > 9999 {
		return invalid("punto_de_venta", "must be between 1 and 9999")
	}
	if r.DocumentType <= 0 {
		return invalid("tipo_comprobante", "is required")
	}
	if r.RecipientDocType <= 0 {
		return invalid("tipo_doc_receptor", "is required")
	}
	if r.RecipientDocNumber == "" || !digitsOnly(r.RecipientDocNumber) {
		return invalid("nro_doc_receptor", "must contain digits only, without dashes or dots")
	}
	if r.Concept < ConceptProducts || r.Concept > ConceptBoth {
		return invalid("concepto", "must be 1, 2 or 3")
	}

	amounts := []struct {
		field string
		value decimal.Decimal
	}{
		{"importe_no_gravado", r.NotTaxed},
		{"importe_neto", r.Net},
		{"importe_exento", r.Exempt},
		{"importe_iva", r.VAT},
		{"importe_tributos", r.OtherTaxes},
	}
	for _, a := range amounts {
		if a.value.IsNegative() {
			return invalid(a.field, "must not be negative")
		}
	}
	if !r.Total.IsPositive() {
		return invalid("importe_total", "must be greater than zero")
	}

	expected := r.NotTaxed.Add(r.Net).Add(r.Exempt).Add(r.VAT).Add(r.OtherTaxes)
	if r.Total.Sub(expected).Abs().GreaterThan(totalTolerance) {
		return invalid("importe_total", "("+r.Total.String()+") does not match the sum of its components ("+expected.String()+")")
	}

	if r.Currency != "" && len(r.Currency) != 3 {
		return invalid("moneda", "must be a 3 letter AFIP currency code")
	}
	if !r.ExchangeRate.IsZero() && !r.ExchangeRate.IsPositive() {
		return invalid("cotizacion_moneda", "must be greater than zero")
	}

	if r.Concept != ConceptProducts {
		if r.ServiceFrom.IsZero() || r.ServiceTo.IsZero() || r.PaymentDue.IsZero() {
			return invalid("fecha_servicio", "service period and payment due date are required for services")
		}
		if r.ServiceTo.Before(r.ServiceFrom) {
			return invalid("fecha_servicio", "service period ends before it starts")
		}
	}

	for _, v := range r.VATLines {
		if v.ID <= 0 {
			return invalid("iva", "VAT rate id is required")
		}
		if v.Base.IsNegative() || v.Amount.IsNegative() {
			return invalid("iva", "VAT amounts must not be negative")
		}
	}
	for _, t := range r.TaxLines {
		if t.ID <= 0 {
			return invalid("tributos", "tax id is required")
		}
	}
	for _, a := range r.Associated {
		if a.Type <= 0 || a.PointOfSale <= 0 || a.Number <= 0 {
			return invalid("comprobantes_asociados", "type, point of sale and number are required")
		}
	}
	return nil
}

// withDefaults returns a copy with the values WSFE expects when the caller omitted them.
func (r InvoiceRequest) withDefaults() InvoiceRequest {
	if r.Concept == 0 {
		r.Concept = ConceptProducts
	}
	if r.Currency == "" {
		r.Currency = DefaultCurrency
	}
	if r.ExchangeRate.IsZero() {
		r.ExchangeRate = decimal.NewFromInt(1)
	}
	if r.ReceiverVATCondition == 0 {
		if r.RecipientDocType == DocTypeFinalConsumer {
			r.ReceiverVATCondition = VATConditionFinalConsumer
		} else {
			r.ReceiverVATCondition = VATConditionRegistered
		}
	}
	if len(r.VATLines) == 0 && r.VAT.IsPositive() {
		r.VATLines = []VATLine{{ID: VATRate21, Base: r.Net, Amount: r.VAT}}
	} else {
		r.VATLines = append([]VATLine(nil), r.VATLines...)
	}
	r.TaxLines = append([]TaxLine(nil), r.TaxLines...)
	r.Associated = append([]AssociatedDocument(nil), r.Associated...)
	r.Optionals = append([]OptionalField(nil), r.Optionals...)
	return r
}

func invalid(field, msg string) error {
	return &afip.ValidationError{Field: field, Message: msg}
}

func digitsOnly(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return s != ""
}
