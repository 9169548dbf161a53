package soap

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// Fault is a SOAP 1.1 fault returned by the remote service.
type Fault struct {
	Code   string
	String string
	Detail string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("SOAP fault %s: %s", f.Code, f.String)
}

func parseFault(el *etree.Element) *Fault {
	f := &Fault{}
	if c := Child(el, "faultcode"); c != nil {
		f.Code = strings.TrimSpace(c.Text())
	}
	if c := Child(el, "faultstring"); c != nil {
		f.String = strings.TrimSpace(c.Text())
	}
	if c := Child(el, "detail"); c != nil {
		var parts []string
		for _, d := range c.ChildElements() {
			if txt := strings.TrimSpace(d.Text()); txt != "" {
				parts = append(parts, d.Tag+": "+txt)
			}
		}
		f.Detail = strings.Join(parts, "; ")
	}
	return f
}
