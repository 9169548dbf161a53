package wsfe

import (
	"strconv"
	"strings"

	"github.com/blendpos/go-afip-client/afip/soap"
)

// DetailResponse extracts the single FECAEDetResponse from FeDetResp. FeDetResp may be
// a record or a list, and FECAEDetResponse itself may be a list; the first entry wins.
// Unexpected shapes yield an empty record.
func DetailResponse(feDetResp soap.Value) *soap.Record {
	outer, ok := soap.AsRecord(feDetResp)
	if !ok {
		return soap.NewRecord()
	}

	var inner soap.Value = outer
	if outer.Has("FECAEDetResponse") {
		inner = outer.Get("FECAEDetResponse")
	}

	det, ok := soap.AsRecord(inner)
	if !ok {
		return soap.NewRecord()
	}
	return det
}

// Observations flattens Errors, Observaciones or Events into a list in remote order.
// Zero, one or many entries at any nesting depth are accepted; anything that is not
// a {Code, Msg} pair is skipped.
func Observations(v soap.Value) []Observation {
	out := []Observation{}
	collectObservations(v, &out)
	return out
}

func collectObservations(v soap.Value, out *[]Observation) {
	switch t := v.(type) {
	case soap.List:
		for _, item := range t {
			collectObservations(item, out)
		}
	case *soap.Record:
		if t == nil {
			return
		}
		if t.Has("Code") || t.Has("Msg") {
			*out = append(*out, Observation{
				Code:    atoi(soap.TextOf(t.Get("Code"))),
				Message: soap.TextOf(t.Get("Msg")),
			})
			return
		}
		for _, k := range t.Keys() {
			collectObservations(t.Get(k), out)
		}
	}
}

// NormalizeCAEResult turns FECAESolicitarResult into an InvoiceResult. It never fails;
// fields missing from the response are left empty.
func NormalizeCAEResult(result soap.Value) *InvoiceResult {
	rec, _ := soap.AsRecord(result)
	cab, _ := soap.AsRecord(rec.Get("FeCabResp"))
	det := DetailResponse(rec.Get("FeDetResp"))

	out := &InvoiceResult{
		Outcome:        Outcome(soap.TextOf(cab.Get("Resultado"))),
		PointOfSale:    atoi(soap.TextOf(cab.Get("PtoVta"))),
		DocumentType:   atoi(soap.TextOf(cab.Get("CbteTipo"))),
		SequenceNumber: atoi64(soap.TextOf(det.Get("CbteDesde"))),
		IssueDate:      soap.TextOf(det.Get("CbteFch")),
		CAE:            soap.TextOf(det.Get("CAE")),
		CAEExpiry:      soap.TextOf(det.Get("CAEFchVto")),
		Reprocess:      soap.TextOf(cab.Get("Reproceso")),
	}
	if out.Outcome == "" {
		out.Outcome = Outcome(soap.TextOf(det.Get("Resultado")))
	}
	if out.Outcome == "" {
		out.Outcome = Rejected
	}

	out.Observations = append(Observations(rec.Get("Errors")), Observations(det.Get("Observaciones"))...)
	out.Events = Observations(rec.Get("Events"))

	// a partial result still carries the CAE of its approved details
	if out.Outcome == Rejected {
		out.CAE = ""
		out.CAEExpiry = ""
	}
	return out
}

func hasCode(obs []Observation, codes ...int) bool {
	for _, o := range obs {
		for _, c := range codes {
			if o.Code == c {
				return true
			}
		}
	}
	return false
}

func atoi(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func atoi64(s string) int64 {
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
