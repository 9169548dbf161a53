package soap

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/beevik/etree"
	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const okResponse = `<?xml version="1.0" encoding="utf-8"?>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
  <soap:Body>
    <FEDummyResponse xmlns="http://ar.gov.afip.dif.FEV1/">
      <FEDummyResult><AppServer>OK</AppServer><DbServer>OK</DbServer><AuthServer>OK</AuthServer></FEDummyResult>
    </FEDummyResponse>
  </soap:Body>
</soap:Envelope>`

const faultResponse = `<?xml version="1.0" encoding="UTF-8"?>
<soapenv:Envelope xmlns:soapenv="http://schemas.xmlsoap.org/soap/envelope/">
  <soapenv:Body>
    <soapenv:Fault>
      <faultcode xmlns:ns1="http://xml.apache.org/axis/">ns1:coe.alreadyAuthenticated</faultcode>
      <faultstring>El CEE ya posee un TA valido para el acceso al WSN solicitado</faultstring>
      <detail><ns2:hostname xmlns:ns2="http://xml.apache.org/axis/">wsaahomo</ns2:hostname></detail>
    </soapenv:Fault>
  </soapenv:Body>
</soapenv:Envelope>`

func TestCall_ReturnsFirstBodyElement(t *testing.T) {
	var gotAction, gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAction = r.Header.Get("SOAPAction")
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(okResponse))
	}))
	defer srv.Close()

	doc, op := NewRequest("http://ar.gov.afip.dif.FEV1/", "FEDummy")
	AddText(op, "Probe", "1")

	el, err := NewClient(srv.URL, srv.Client()).Call(context.Background(), "http://ar.gov.afip.dif.FEV1/FEDummy", doc)
	require.NoError(t, err)
	assert.Equal(t, "FEDummyResponse", el.Tag)
	assert.Equal(t, `"http://ar.gov.afip.dif.FEV1/FEDummy"`, gotAction)
	assert.Equal(t, "text/xml; charset=utf-8", gotType)

	sent := etree.NewDocument()
	require.NoError(t, sent.ReadFromBytes(gotBody))
	body := Child(sent.Root(), "Body")
	require.NotNil(t, body)
	opEl := Child(body, "FEDummy")
	require.NotNil(t, opEl)
	assert.Equal(t, "http://ar.gov.afip.dif.FEV1/", opEl.SelectAttrValue("xmlns", ""))
	assert.Equal(t, "1", Child(opEl, "Probe").Text())
}

func TestCall_FaultWithStatus500(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(faultResponse))
	}))
	defer srv.Close()

	doc, _ := NewRequest("urn:x", "loginCms")
	_, err := NewClient(srv.URL, srv.Client()).Call(context.Background(), "", doc)
	require.Error(t, err)

	var f *Fault
	require.True(t, errors.As(err, &f))
	assert.Equal(t, "ns1:coe.alreadyAuthenticated", f.Code)
	assert.Contains(t, f.String, "TA valido")
	assert.Equal(t, "hostname: wsaahomo", f.Detail)
}

func TestCall_NonSOAPErrorPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html><body>bad gateway"))
	}))
	defer srv.Close()

	doc, _ := NewRequest("urn:x", "op")
	_, err := NewClient(srv.URL, srv.Client()).Call(context.Background(), "op", doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestCall_EmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/"><s:Body/></s:Envelope>`))
	}))
	defer srv.Close()

	doc, _ := NewRequest("urn:x", "op")
	_, err := NewClient(srv.URL, srv.Client()).Call(context.Background(), "op", doc)
	assert.EqualError(t, err, "empty SOAP body")
}

func TestCall_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	doc, _ := NewRequest("urn:x", "op")
	_, err := NewClient(srv.URL, srv.Client()).Call(ctx, "op", doc)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}
