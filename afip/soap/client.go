package soap

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/beevik/etree"
	"github.com/blendpos/go-afip-client/afip/util"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.soap")

const maxResponseSize = 8 << 20

// Client posts SOAP 1.1 envelopes to a single endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
}

func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{endpoint: endpoint, httpClient: httpClient}
}

func (c *Client) Endpoint() string { return c.endpoint }

// Call sends doc and returns the first element inside the response Body.
// A SOAP fault is returned as *Fault regardless of the HTTP status.
func (c *Client) Call(ctx context.Context, action string, doc *etree.Document) (*etree.Element, error) {
	payload, err := doc.WriteToBytes()
	if err != nil {
		return nil, errors.Wrap(err, "serialize envelope")
	}

	if util.HttpTraceEnabled() {
		logger.Debugf(">>> %s %s\n%s", c.endpoint, action, payload)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", `"`+action+`"`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "send request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}

	if util.HttpTraceEnabled() {
		logger.Debugf("<<< %d\n%s", resp.StatusCode, raw)
	}

	body, perr := parseBody(raw)
	if perr != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, errors.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet(raw))
		}
		return nil, perr
	}

	if f := Child(body, "Fault"); f != nil {
		return nil, parseFault(f)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status code %d: %s", resp.StatusCode, snippet(raw))
	}

	children := body.ChildElements()
	if len(children) == 0 {
		return nil, errors.New("empty SOAP body")
	}
	return children[0], nil
}

func parseBody(raw []byte) (*etree.Element, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, errors.Wrap(err, "parse response")
	}
	env := doc.Root()
	if env == nil || env.Tag != "Envelope" {
		return nil, errors.New("response is not a SOAP envelope")
	}
	body := Child(env, "Body")
	if body == nil {
		return nil, errors.New("SOAP envelope has no Body")
	}
	return body, nil
}

func snippet(b []byte) string {
	const max = 512
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
