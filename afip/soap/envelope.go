package soap

import "github.com/beevik/etree"

const EnvelopeNS = "http://schemas.xmlsoap.org/soap/envelope/"

// NewRequest builds an envelope with an empty operation element in namespace ns.
// Children added to the returned element inherit ns as their default namespace.
func NewRequest(ns, operation string) (*etree.Document, *etree.Element) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)

	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", EnvelopeNS)
	env.CreateElement("soap:Header")
	body := env.CreateElement("soap:Body")

	op := body.CreateElement(operation)
	op.CreateAttr("xmlns", ns)
	return doc, op
}

// AddText appends <name>text</name> to parent.
func AddText(parent *etree.Element, name, text string) *etree.Element {
	el := parent.CreateElement(name)
	el.SetText(text)
	return el
}
