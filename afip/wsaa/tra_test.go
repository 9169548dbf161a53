package wsaa

import (
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketRequest_Bytes(t *testing.T) {
	now := time.Date(2025, 6, 1, 15, 30, 0, 0, time.UTC)

	tra, err := NewTicketRequest("wsfe", now, 20*time.Minute)
	require.NoError(t, err)

	b, err := tra.Bytes()
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromBytes(b))
	root := doc.Root()
	assert.Equal(t, "loginTicketRequest", root.Tag)
	assert.Equal(t, "1.0", root.SelectAttrValue("version", ""))

	header := soap.Child(root, "header")
	require.NotNil(t, header)
	assert.Equal(t, "1748791800", soap.Child(header, "uniqueId").Text())
	assert.Equal(t, "2025-06-01T12:20:00-03:00", soap.Child(header, "generationTime").Text())
	assert.Equal(t, "2025-06-01T12:40:00-03:00", soap.Child(header, "expirationTime").Text())
	assert.Equal(t, "wsfe", soap.Child(root, "service").Text())
}

func TestTicketRequest_RejectsOddService(t *testing.T) {
	_, err := NewTicketRequest("wsfe</service>", time.Now(), time.Minute)
	assert.Error(t, err)

	_, err = NewTicketRequest("", time.Now(), time.Minute)
	assert.Error(t, err)
}

func TestParseTicketResponse(t *testing.T) {
	raw := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<loginTicketResponse version="1.0">
    <header>
        <source>CN=wsaahomo, O=AFIP, C=AR, SERIALNUMBER=CUIT 33693450239</source>
        <destination>SERIALNUMBER=CUIT 20123456789, CN=blendpos</destination>
        <uniqueId>383953094</uniqueId>
        <generationTime>2025-06-01T12:20:00.123-03:00</generationTime>
        <expirationTime>2025-06-02T00:20:00.123-03:00</expirationTime>
    </header>
    <credentials>
        <token>PD94bWwgdmVyc2lvbj0iMS4wIiBlbmNvZGluZz0iVVRGLTgiPz4=</token>
        <sign>aGVsbG8=</sign>
    </credentials>
</loginTicketResponse>`

	tk, err := ParseTicketResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "PD94bWwgdmVyc2lvbj0iMS4wIiBlbmNvZGluZz0iVVRGLTgiPz4=", tk.Token)
	assert.Equal(t, "aGVsbG8=", tk.Sign)
	assert.Equal(t, time.Date(2025, 6, 2, 3, 20, 0, 123000000, time.UTC), tk.ExpiresAt.UTC())
	assert.Equal(t, time.Date(2025, 6, 1, 15, 20, 0, 123000000, time.UTC), tk.IssuedAt.UTC())
}

func TestParseTicketResponse_Failures(t *testing.T) {
	_, err := ParseTicketResponse("not xml <")
	assert.Error(t, err)

	_, err = ParseTicketResponse(`<other/>`)
	assert.Error(t, err)

	_, err = ParseTicketResponse(`<loginTicketResponse><credentials><token>x</token></credentials></loginTicketResponse>`)
	assert.Error(t, err)

	tk, err := ParseTicketResponse(`<loginTicketResponse><header><expirationTime>garbage</expirationTime></header><credentials><token>x</token><sign>y</sign></credentials></loginTicketResponse>`)
	require.NoError(t, err)
	assert.True(t, tk.ExpiresAt.IsZero())
}
