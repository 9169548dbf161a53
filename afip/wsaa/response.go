package wsaa

import (
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/go-faster/errors"
)

// ParseTicketResponse reads a loginTicketResponse document. ExpiresAt and IssuedAt
// are zero when the header is missing or unparseable.
func ParseTicketResponse(raw string) (afip.Ticket, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(strings.TrimSpace(raw)); err != nil {
		return afip.Ticket{}, errors.Wrap(err, "parse loginTicketResponse")
	}
	root := doc.Root()
	if root == nil || root.Tag != "loginTicketResponse" {
		return afip.Ticket{}, errors.New("not a loginTicketResponse")
	}

	var t afip.Ticket
	if creds := soap.Child(root, "credentials"); creds != nil {
		t.Token = childText(creds, "token")
		t.Sign = childText(creds, "sign")
	}
	if header := soap.Child(root, "header"); header != nil {
		t.IssuedAt = parseTime(childText(header, "generationTime"))
		t.ExpiresAt = parseTime(childText(header, "expirationTime"))
	}

	if t.Token == "" || t.Sign == "" {
		return afip.Ticket{}, errors.New("loginTicketResponse without token or sign")
	}
	return t, nil
}

func childText(el *etree.Element, name string) string {
	c := soap.Child(el, name)
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.Text())
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
