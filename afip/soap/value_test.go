package soap

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeString(t *testing.T, s string) Value {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return Decode(doc.Root())
}

func TestDecode_SingleChildIsRecord(t *testing.T) {
	v := decodeString(t, `<Observaciones><Obs><Code>10015</Code><Msg>uno</Msg></Obs></Observaciones>`)

	rec, ok := v.(*Record)
	require.True(t, ok)
	obs, ok := rec.Get("Obs").(*Record)
	require.True(t, ok)
	assert.Equal(t, "10015", TextOf(obs.Get("Code")))
	assert.Equal(t, []string{"Code", "Msg"}, obs.Keys())
}

func TestDecode_RepeatedChildIsList(t *testing.T) {
	v := decodeString(t, `<Observaciones>
		<Obs><Code>1</Code><Msg>a</Msg></Obs>
		<Obs><Code>2</Code><Msg>b</Msg></Obs>
		<Obs><Code>3</Code><Msg>c</Msg></Obs>
	</Observaciones>`)

	rec := v.(*Record)
	list, ok := rec.Get("Obs").(List)
	require.True(t, ok)
	require.Len(t, list, 3)
	assert.Equal(t, "3", TextOf(list[2].(*Record).Get("Code")))
}

func TestDecode_NamespacesAndWhitespace(t *testing.T) {
	v := decodeString(t, `<r:Result xmlns:r="urn:x"><r:CAE>
		71234567890123 </r:CAE><r:Empty/></r:Result>`)

	rec := v.(*Record)
	assert.Equal(t, "71234567890123", TextOf(rec.Get("CAE")))
	assert.True(t, rec.Has("Empty"))
	assert.Equal(t, Text(""), rec.Get("Empty"))
}

func TestAsListAndAsRecord(t *testing.T) {
	assert.Empty(t, AsList(nil))
	assert.Len(t, AsList(Text("x")), 1)
	assert.Len(t, AsList(List{Text("a"), Text("b")}), 2)

	r := NewRecord().Set("a", Text("1"))
	got, ok := AsRecord(List{r})
	assert.True(t, ok)
	assert.Same(t, r, got)

	_, ok = AsRecord(List{})
	assert.False(t, ok)
	_, ok = AsRecord(Text("x"))
	assert.False(t, ok)

	var nilRec *Record
	assert.Nil(t, nilRec.Get("x"))
	assert.Equal(t, 0, nilRec.Len())
}

func TestRecord_SetReplacesKeepingOrder(t *testing.T) {
	r := NewRecord().Set("b", Text("1")).Set("a", Text("2")).Set("b", Text("3"))
	assert.Equal(t, []string{"b", "a"}, r.Keys())
	assert.Equal(t, "3", TextOf(r.Get("b")))
}
