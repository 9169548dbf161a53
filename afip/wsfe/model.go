package wsfe

import (
	"time"

	"github.com/shopspring/decimal"
)

type Outcome string

const (
	Approved Outcome = "A"
	Rejected Outcome = "R"
	Partial  Outcome = "P"
)

// Recipient document types.
const (
	DocTypeCUIT          = 80
	DocTypeCUIL          = 86
	DocTypeDNI           = 96
	DocTypeFinalConsumer = 99
)

const (
	ConceptProducts = 1
	ConceptServices = 2
	ConceptBoth     = 3
)

// Receiver VAT conditions (RG 5616).
const (
	VATConditionRegistered    = 1
	VATConditionFinalConsumer = 5
)

// VATRate21 is the AlicIva id for 21%.
const VATRate21 = 5

// WSFE error and observation codes with special handling.
const (
	CodeTokenRejected    = 600
	CodeCUITNotInToken   = 601
	CodeNoResults        = 602
	CodeSequenceMismatch = 10016
)

const DefaultCurrency = "PES"

type VATLine struct {
	ID     int
	Base   decimal.Decimal
	Amount decimal.Decimal
}

type TaxLine struct {
	ID          int
	Description string
	Base        decimal.Decimal
	Rate        decimal.Decimal
	Amount      decimal.Decimal
}

// AssociatedDocument references an earlier voucher, e.g. the invoice a credit note cancels.
type AssociatedDocument struct {
	Type        int
	PointOfSale int
	Number      int64
	CUIT        string
	Date        time.Time
}

type OptionalField struct {
	ID    string
	Value string
}

// InvoiceRequest is one voucher to authorize. Zero values mean "not informed".
type InvoiceRequest struct {
	IssuerCUIT         string
	PointOfSale        int
	DocumentType       int
	RecipientDocType   int
	RecipientDocNumber string
	RecipientName      string
	Concept            int

	NotTaxed   decimal.Decimal
	Net        decimal.Decimal
	Exempt     decimal.Decimal
	VAT        decimal.Decimal
	OtherTaxes decimal.Decimal
	Total      decimal.Decimal

	Currency     string
	ExchangeRate decimal.Decimal

	ServiceFrom time.Time
	ServiceTo   time.Time
	PaymentDue  time.Time

	VATLines             []VATLine
	TaxLines             []TaxLine
	Associated           []AssociatedDocument
	Optionals            []OptionalField
	ReceiverVATCondition int
}

type Observation struct {
	Code    int
	Message string
}

// InvoiceResult is the outcome of one submission. A rejection is a result, not an error.
type InvoiceResult struct {
	Outcome        Outcome
	PointOfSale    int
	DocumentType   int
	SequenceNumber int64
	IssueDate      string
	CAE            string
	CAEExpiry      string
	// Observations lists top level errors first, then detail observations.
	Observations []Observation
	Events       []Observation
	Reprocess    string
}

func (r *InvoiceResult) Approved() bool {
	return r.Outcome == Approved && r.CAE != ""
}

type ServerStatus struct {
	AppServer  string
	DbServer   string
	AuthServer string
}

func (s ServerStatus) OK() bool {
	return s.AppServer == "OK" && s.DbServer == "OK" && s.AuthServer == "OK"
}

// IssuedInvoice is a voucher as recorded by AFIP.
type IssuedInvoice struct {
	DocumentType       int
	PointOfSale        int
	Number             int64
	Concept            int
	RecipientDocType   int
	RecipientDocNumber string
	IssueDate          string
	Total              decimal.Decimal
	Net                decimal.Decimal
	VAT                decimal.Decimal
	Currency           string
	ExchangeRate       decimal.Decimal
	Outcome            Outcome
	CAE                string
	CAEExpiry          string
	EmissionType       string
	Observations       []Observation
}
