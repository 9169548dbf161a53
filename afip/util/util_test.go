package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDebugEnabled_False(t *testing.T) {
	t.Setenv("AFIP_DEBUG", "")
	assert.False(t, DebugEnabled(), "debug should be false")
}

func TestIsDebugEnabled_True(t *testing.T) {
	t.Setenv("AFIP_DEBUG", "true")
	assert.True(t, DebugEnabled(), "debug should be true")
}

func TestHttpTraceEnabled_Garbage(t *testing.T) {
	t.Setenv("AFIP_HTTP_TRACE", "yes please")
	assert.False(t, HttpTraceEnabled())
}

func TestMergeTemplate(t *testing.T) {
	tpl := `<a t="{{rfc3339 .When}}">{{xml .Name}}</a><b>{{base64 .Raw}}</b>`

	out, err := MergeTemplate(&tpl, struct {
		When time.Time
		Name string
		Raw  []byte
	}{
		When: time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("ART", -3*3600)),
		Name: "A&B <sa>",
		Raw:  []byte("hi"),
	})
	require.NoError(t, err)
	assert.Equal(t, `<a t="2025-01-02T03:04:05-03:00">A&amp;B &lt;sa&gt;</a><b>aGk=</b>`, string(out))
}

func TestMergeTemplate_ParseError(t *testing.T) {
	tpl := `{{.Missing`
	_, err := MergeTemplate(&tpl, nil)
	assert.Error(t, err)
}
