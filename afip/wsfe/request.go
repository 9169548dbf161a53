package wsfe

import (
	"strconv"
	"time"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/shopspring/decimal"
)

const dateLayout = "20060102"

// BuildCAERequest appends FeCAEReq for a single voucher to the FECAESolicitar element.
func BuildCAERequest(op *etree.Element, r *InvoiceRequest, number int64, issueDate time.Time) {
	req := op.CreateElement("FeCAEReq")

	cab := req.CreateElement("FeCabReq")
	soap.AddText(cab, "CantReg", "1")
	soap.AddText(cab, "PtoVta", strconv.Itoa(r.PointOfSale))
	soap.AddText(cab, "CbteTipo", strconv.Itoa(r.DocumentType))

	BuildDetail(req.CreateElement("FeDetReq"), r, number, issueDate)
}

// BuildDetail writes FECAEDetRequest under parent. Optional elements are written only
// when they carry a value: WSFE rejects present-but-empty elements (10024, 10071).
func BuildDetail(parent *etree.Element, r *InvoiceRequest, number int64, issueDate time.Time) *etree.Element {
	det := parent.CreateElement("FECAEDetRequest")
	n := strconv.FormatInt(number, 10)

	soap.AddText(det, "Concepto", strconv.Itoa(r.Concept))
	soap.AddText(det, "DocTipo", strconv.Itoa(r.RecipientDocType))
	soap.AddText(det, "DocNro", r.RecipientDocNumber)
	soap.AddText(det, "CbteDesde", n)
	soap.AddText(det, "CbteHasta", n)
	soap.AddText(det, "CbteFch", issueDate.Format(dateLayout))
	soap.AddText(det, "ImpTotal", amount(r.Total))
	soap.AddText(det, "ImpTotConc", amount(r.NotTaxed))
	soap.AddText(det, "ImpNeto", amount(r.Net))
	soap.AddText(det, "ImpOpEx", amount(r.Exempt))
	soap.AddText(det, "ImpTrib", amount(r.OtherTaxes))
	soap.AddText(det, "ImpIVA", amount(r.VAT))

	optionalDate(det, "FchServDesde", r.ServiceFrom)
	optionalDate(det, "FchServHasta", r.ServiceTo)
	optionalDate(det, "FchVtoPago", r.PaymentDue)

	soap.AddText(det, "MonId", r.Currency)
	soap.AddText(det, "MonCotiz", r.ExchangeRate.StringFixed(6))

	if r.ReceiverVATCondition > 0 {
		soap.AddText(det, "CondicionIVAReceptorId", strconv.Itoa(r.ReceiverVATCondition))
	}

	if len(r.Associated) > 0 {
		list := det.CreateElement("CbtesAsoc")
		for _, a := range r.Associated {
			el := list.CreateElement("CbteAsoc")
			soap.AddText(el, "Tipo", strconv.Itoa(a.Type))
			soap.AddText(el, "PtoVta", strconv.Itoa(a.PointOfSale))
			soap.AddText(el, "Nro", strconv.FormatInt(a.Number, 10))
			if a.CUIT != "" {
				soap.AddText(el, "Cuit", a.CUIT)
			}
			optionalDate(el, "CbteFch", a.Date)
		}
	}

	if len(r.TaxLines) > 0 {
		list := det.CreateElement("Tributos")
		for _, t := range r.TaxLines {
			el := list.CreateElement("Tributo")
			soap.AddText(el, "Id", strconv.Itoa(t.ID))
			if t.Description != "" {
				soap.AddText(el, "Desc", t.Description)
			}
			soap.AddText(el, "BaseImp", amount(t.Base))
			soap.AddText(el, "Alic", amount(t.Rate))
			soap.AddText(el, "Importe", amount(t.Amount))
		}
	}

	if len(r.VATLines) > 0 {
		list := det.CreateElement("Iva")
		for _, v := range r.VATLines {
			el := list.CreateElement("AlicIva")
			soap.AddText(el, "Id", strconv.Itoa(v.ID))
			soap.AddText(el, "BaseImp", amount(v.Base))
			soap.AddText(el, "Importe", amount(v.Amount))
		}
	}

	if len(r.Optionals) > 0 {
		list := det.CreateElement("Opcionales")
		for _, o := range r.Optionals {
			el := list.CreateElement("Opcional")
			soap.AddText(el, "Id", o.ID)
			soap.AddText(el, "Valor", o.Value)
		}
	}

	return det
}

func optionalDate(parent *etree.Element, name string, t time.Time) {
	if t.IsZero() {
		return
	}
	soap.AddText(parent, name, t.Format(dateLayout))
}

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}
