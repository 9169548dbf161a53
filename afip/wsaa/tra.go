package wsaa

import (
	"regexp"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/util"
	"github.com/go-faster/errors"
)

var traTemplate = `<?xml version="1.0" encoding="UTF-8"?>
<loginTicketRequest version="1.0">
<header>
<uniqueId>{{.UniqueID}}</uniqueId>
<generationTime>{{rfc3339 .GenerationTime}}</generationTime>
<expirationTime>{{rfc3339 .ExpirationTime}}</expirationTime>
</header>
<service>{{xml .Service}}</service>
</loginTicketRequest>
`

var serviceRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// TicketRequest is the loginTicketRequest (TRA) signed and sent to loginCms.
type TicketRequest struct {
	UniqueID       uint32
	GenerationTime time.Time
	ExpirationTime time.Time
	Service        string
}

// NewTicketRequest builds a TRA valid from now-ttl/2 to now+ttl/2 so that moderate
// clock drift against WSAA is tolerated.
func NewTicketRequest(service string, now time.Time, ttl time.Duration) (*TicketRequest, error) {
	if !serviceRe.MatchString(service) {
		return nil, errors.Errorf("invalid WSN service name %q", service)
	}
	now = now.In(afip.ArgentinaTime).Truncate(time.Second)
	return &TicketRequest{
		UniqueID:       uint32(now.Unix()),
		GenerationTime: now.Add(-ttl / 2),
		ExpirationTime: now.Add(ttl / 2),
		Service:        service,
	}, nil
}

// Bytes returns the exact XML that gets signed.
func (r *TicketRequest) Bytes() ([]byte, error) {
	return util.MergeTemplate(&traTemplate, r)
}
