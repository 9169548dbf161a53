package wsfe

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeXML(t *testing.T, s string) soap.Value {
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(s))
	return soap.Decode(doc.Root())
}

func TestObservations_Shapes(t *testing.T) {
	single := soap.NewRecord().Set("Obs", soap.NewRecord().
		Set("Code", soap.Text("10015")).
		Set("Msg", soap.Text("doc invalido")))
	assert.Equal(t, []Observation{{10015, "doc invalido"}}, Observations(single))

	bare := soap.NewRecord().Set("Code", soap.Text("1")).Set("Msg", soap.Text("x"))
	assert.Len(t, Observations(bare), 1)

	two := soap.List{
		soap.NewRecord().Set("Code", soap.Text("1")).Set("Msg", soap.Text("first")),
		soap.NewRecord().Set("Code", soap.Text("2")).Set("Msg", soap.Text("second")),
	}
	assert.Equal(t, []Observation{{1, "first"}, {2, "second"}}, Observations(two))

	assert.Equal(t, []Observation{}, Observations(nil))
	assert.Equal(t, []Observation{}, Observations(soap.Text("")))
	assert.Equal(t, []Observation{}, Observations(soap.List{}))
}

func TestObservations_FromXML(t *testing.T) {
	v := decodeXML(t, `<Observaciones>
		<Obs><Code>10017</Code><Msg>a</Msg></Obs>
		<Obs><Code>10018</Code><Msg>b</Msg></Obs>
		<Obs><Code>10019</Code><Msg>c</Msg></Obs>
	</Observaciones>`)
	obs := Observations(v)
	require.Len(t, obs, 3)
	assert.Equal(t, 10017, obs[0].Code)
	assert.Equal(t, "c", obs[2].Message)

	// idempotent over the same decoded value
	assert.Equal(t, obs, Observations(v))
}

func TestDetailResponse_Shapes(t *testing.T) {
	det := soap.NewRecord().Set("CAE", soap.Text("123"))

	asRecord := soap.NewRecord().Set("FECAEDetResponse", det)
	asList := soap.List{soap.NewRecord().Set("FECAEDetResponse", soap.List{det, soap.NewRecord()})}
	direct := soap.List{det}

	for name, v := range map[string]soap.Value{"record": asRecord, "list": asList, "direct": direct} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, "123", soap.TextOf(DetailResponse(v).Get("CAE")))
		})
	}

	assert.Equal(t, 0, DetailResponse(nil).Len())
	assert.Equal(t, 0, DetailResponse(soap.Text("garbage")).Len())
}

const approvedXML = `<FECAESolicitarResult>
	<FeCabResp><Cuit>20123456789</Cuit><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo>
		<FchProceso>20250601101010</FchProceso><CantReg>1</CantReg><Resultado>A</Resultado><Reproceso>N</Reproceso></FeCabResp>
	<FeDetResp><FECAEDetResponse>
		<Concepto>1</Concepto><DocTipo>99</DocTipo><DocNro>0</DocNro>
		<CbteDesde>42</CbteDesde><CbteHasta>42</CbteHasta><CbteFch>20250601</CbteFch>
		<Resultado>A</Resultado><CAE>75123456789012</CAE><CAEFchVto>20250611</CAEFchVto>
	</FECAEDetResponse></FeDetResp>
</FECAESolicitarResult>`

func TestNormalizeCAEResult_Approved(t *testing.T) {
	res := NormalizeCAEResult(decodeXML(t, approvedXML))

	assert.Equal(t, Approved, res.Outcome)
	assert.True(t, res.Approved())
	assert.Equal(t, "75123456789012", res.CAE)
	assert.Equal(t, "20250611", res.CAEExpiry)
	assert.Equal(t, int64(42), res.SequenceNumber)
	assert.Equal(t, 1, res.PointOfSale)
	assert.Equal(t, 6, res.DocumentType)
	assert.Equal(t, "N", res.Reprocess)
	assert.Empty(t, res.Observations)
	assert.NotNil(t, res.Observations)
}

func TestNormalizeCAEResult_RejectedWithTwoObservations(t *testing.T) {
	v := decodeXML(t, `<FECAESolicitarResult>
		<FeCabResp><PtoVta>1</PtoVta><CbteTipo>6</CbteTipo><Resultado>R</Resultado></FeCabResp>
		<FeDetResp><FECAEDetResponse>
			<CbteDesde>42</CbteDesde><Resultado>R</Resultado><CAE></CAE>
			<Observaciones>
				<Obs><Code>10015</Code><Msg>first</Msg></Obs>
				<Obs><Code>10016</Code><Msg>second</Msg></Obs>
			</Observaciones>
		</FECAEDetResponse></FeDetResp>
		<Errors><Err><Code>10048</Code><Msg>top</Msg></Err></Errors>
	</FECAESolicitarResult>`)

	res := NormalizeCAEResult(v)
	assert.Equal(t, Rejected, res.Outcome)
	assert.False(t, res.Approved())
	assert.Empty(t, res.CAE)
	assert.Equal(t, []Observation{{10048, "top"}, {10015, "first"}, {10016, "second"}}, res.Observations)
}

func TestNormalizeCAEResult_Degenerate(t *testing.T) {
	res := NormalizeCAEResult(nil)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Empty(t, res.CAE)
	assert.Equal(t, []Observation{}, res.Observations)
	assert.Equal(t, []Observation{}, res.Events)

	// outcome falls back to the detail when the header lacks it
	v := decodeXML(t, `<R><FeDetResp><FECAEDetResponse><Resultado>A</Resultado><CAE>1</CAE></FECAEDetResponse></FeDetResp></R>`)
	res = NormalizeCAEResult(v)
	assert.Equal(t, Approved, res.Outcome)
	assert.Equal(t, "1", res.CAE)

	// a partial result keeps the CAE issued for its approved detail
	v = decodeXML(t, `<R><FeCabResp><Resultado>P</Resultado></FeCabResp><FeDetResp><FECAEDetResponse><CAE>1</CAE><CAEFchVto>20250101</CAEFchVto></FECAEDetResponse></FeDetResp></R>`)
	res = NormalizeCAEResult(v)
	assert.Equal(t, Partial, res.Outcome)
	assert.Equal(t, "1", res.CAE)
	assert.Equal(t, "20250101", res.CAEExpiry)

	// a CAE on a rejected result is dropped
	v = decodeXML(t, `<R><FeCabResp><Resultado>R</Resultado></FeCabResp><FeDetResp><FECAEDetResponse><CAE>1</CAE><CAEFchVto>20250101</CAEFchVto></FECAEDetResponse></FeDetResp></R>`)
	res = NormalizeCAEResult(v)
	assert.Equal(t, Rejected, res.Outcome)
	assert.Empty(t, res.CAE)
	assert.Empty(t, res.CAEExpiry)
}
