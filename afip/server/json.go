package server

import (
	"strings"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/wsfe"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"
)

// decodeInvoiceRequest reads the /facturar body. Unknown fields, including the
// informational "items" list, are skipped.
func decodeInvoiceRequest(b []byte) (*wsfe.InvoiceRequest, error) {
	var r wsfe.InvoiceRequest
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "cuit_emisor":
			r.IssuerCUIT, err = str(d)
		case "punto_de_venta":
			r.PointOfSale, err = d.Int()
		case "tipo_comprobante":
			r.DocumentType, err = d.Int()
		case "tipo_doc_receptor":
			r.RecipientDocType, err = d.Int()
		case "nro_doc_receptor":
			r.RecipientDocNumber, err = str(d)
		case "nombre_receptor":
			r.RecipientName, err = str(d)
		case "concepto":
			r.Concept, err = d.Int()
		case "importe_neto":
			r.Net, err = amount(d)
		case "importe_no_gravado":
			r.NotTaxed, err = amount(d)
		case "importe_exento":
			r.Exempt, err = amount(d)
		case "importe_iva":
			r.VAT, err = amount(d)
		case "importe_tributos":
			r.OtherTaxes, err = amount(d)
		case "importe_total":
			r.Total, err = amount(d)
		case "moneda":
			r.Currency, err = str(d)
		case "cotizacion_moneda":
			r.ExchangeRate, err = amount(d)
		case "fecha_servicio_desde":
			r.ServiceFrom, err = date(d)
		case "fecha_servicio_hasta":
			r.ServiceTo, err = date(d)
		case "fecha_vto_pago":
			r.PaymentDue, err = date(d)
		case "condicion_iva_receptor":
			r.ReceiverVATCondition, err = optionalInt(d)
		case "iva":
			err = array(d, func(d *jx.Decoder) error {
				var v wsfe.VATLine
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						v.ID, err = d.Int()
					case "base_imponible":
						v.Base, err = amount(d)
					case "importe":
						v.Amount, err = amount(d)
					default:
						err = d.Skip()
					}
					return err
				})
				r.VATLines = append(r.VATLines, v)
				return err
			})
		case "tributos":
			err = array(d, func(d *jx.Decoder) error {
				var t wsfe.TaxLine
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						t.ID, err = d.Int()
					case "descripcion":
						t.Description, err = str(d)
					case "base_imponible":
						t.Base, err = amount(d)
					case "alicuota":
						t.Rate, err = amount(d)
					case "importe":
						t.Amount, err = amount(d)
					default:
						err = d.Skip()
					}
					return err
				})
				r.TaxLines = append(r.TaxLines, t)
				return err
			})
		case "comprobantes_asociados":
			err = array(d, func(d *jx.Decoder) error {
				var a wsfe.AssociatedDocument
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "tipo":
						a.Type, err = d.Int()
					case "punto_de_venta":
						a.PointOfSale, err = d.Int()
					case "numero":
						a.Number, err = d.Int64()
					case "cuit":
						a.CUIT, err = str(d)
					case "fecha":
						a.Date, err = date(d)
					default:
						err = d.Skip()
					}
					return err
				})
				r.Associated = append(r.Associated, a)
				return err
			})
		case "opcionales":
			err = array(d, func(d *jx.Decoder) error {
				var o wsfe.OptionalField
				err := d.Obj(func(d *jx.Decoder, key string) error {
					var err error
					switch key {
					case "id":
						o.ID, err = str(d)
					case "valor":
						o.Value, err = str(d)
					default:
						err = d.Skip()
					}
					return err
				})
				r.Optionals = append(r.Optionals, o)
				return err
			})
		default:
			err = d.Skip()
		}
		if err != nil {
			return &afip.ValidationError{Field: key, Message: err.Error()}
		}
		return nil
	})
	if err != nil {
		var ve *afip.ValidationError
		if errors.As(err, &ve) {
			return nil, ve
		}
		return nil, &afip.ValidationError{Field: "body", Message: "malformed JSON: " + err.Error()}
	}
	return &r, nil
}

func isNull(d *jx.Decoder) bool {
	return d.Next() == jx.Null
}

func str(d *jx.Decoder) (string, error) {
	if isNull(d) {
		return "", d.Null()
	}
	return d.Str()
}

func optionalInt(d *jx.Decoder) (int, error) {
	if isNull(d) {
		return 0, d.Null()
	}
	return d.Int()
}

// amount accepts a JSON number or a numeric string.
func amount(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Null:
		return decimal.Zero, d.Null()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(strings.TrimSpace(s))
	default:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	}
}

// date accepts YYYYMMDD, as WSFE uses, or YYYY-MM-DD.
func date(d *jx.Decoder) (time.Time, error) {
	s, err := str(d)
	if err != nil || s == "" {
		return time.Time{}, err
	}
	layout := "20060102"
	if strings.Contains(s, "-") {
		layout = "2006-01-02"
	}
	return time.ParseInLocation(layout, s, afip.ArgentinaTime)
}

func array(d *jx.Decoder, item func(d *jx.Decoder) error) error {
	if isNull(d) {
		return d.Null()
	}
	return d.Arr(item)
}

func encodeObservations(e *jx.Encoder, obs []wsfe.Observation) {
	e.ArrStart()
	for _, o := range obs {
		e.ObjStart()
		e.FieldStart("codigo")
		e.Int(o.Code)
		e.FieldStart("mensaje")
		e.Str(o.Message)
		e.ObjEnd()
	}
	e.ArrEnd()
}

func strOrNull(e *jx.Encoder, s string) {
	if s == "" {
		e.Null()
		return
	}
	e.Str(s)
}

func encodeInvoiceResult(e *jx.Encoder, res *wsfe.InvoiceResult, qrURL string) {
	e.ObjStart()
	e.FieldStart("resultado")
	e.Str(string(res.Outcome))
	e.FieldStart("punto_de_venta")
	e.Int(res.PointOfSale)
	e.FieldStart("tipo_comprobante")
	e.Int(res.DocumentType)
	e.FieldStart("numero_comprobante")
	e.Int64(res.SequenceNumber)
	e.FieldStart("fecha_comprobante")
	e.Str(res.IssueDate)
	e.FieldStart("cae")
	strOrNull(e, res.CAE)
	e.FieldStart("cae_vencimiento")
	strOrNull(e, res.CAEExpiry)
	e.FieldStart("observaciones")
	encodeObservations(e, res.Observations)
	e.FieldStart("eventos")
	encodeObservations(e, res.Events)
	e.FieldStart("reproceso")
	strOrNull(e, res.Reprocess)
	e.FieldStart("qr_url")
	strOrNull(e, qrURL)
	e.ObjEnd()
}

func encodeIssuedInvoice(e *jx.Encoder, inv *wsfe.IssuedInvoice) {
	e.ObjStart()
	e.FieldStart("tipo_comprobante")
	e.Int(inv.DocumentType)
	e.FieldStart("punto_de_venta")
	e.Int(inv.PointOfSale)
	e.FieldStart("numero_comprobante")
	e.Int64(inv.Number)
	e.FieldStart("concepto")
	e.Int(inv.Concept)
	e.FieldStart("tipo_doc_receptor")
	e.Int(inv.RecipientDocType)
	e.FieldStart("nro_doc_receptor")
	e.Str(inv.RecipientDocNumber)
	e.FieldStart("fecha_comprobante")
	e.Str(inv.IssueDate)
	e.FieldStart("importe_total")
	e.Num(jx.Num(inv.Total.String()))
	e.FieldStart("importe_neto")
	e.Num(jx.Num(inv.Net.String()))
	e.FieldStart("importe_iva")
	e.Num(jx.Num(inv.VAT.String()))
	e.FieldStart("moneda")
	e.Str(inv.Currency)
	e.FieldStart("cotizacion_moneda")
	e.Num(jx.Num(inv.ExchangeRate.String()))
	e.FieldStart("resultado")
	e.Str(string(inv.Outcome))
	e.FieldStart("cae")
	strOrNull(e, inv.CAE)
	e.FieldStart("cae_vencimiento")
	strOrNull(e, inv.CAEExpiry)
	e.FieldStart("tipo_emision")
	e.Str(inv.EmissionType)
	e.FieldStart("observaciones")
	encodeObservations(e, inv.Observations)
	e.ObjEnd()
}
