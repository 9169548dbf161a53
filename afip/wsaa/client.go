package wsaa

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/blendpos/go-afip-client/afip"
	"github.com/blendpos/go-afip-client/afip/soap"
	"github.com/go-faster/errors"
	"github.com/sirupsen/logrus"
)

var logger = logrus.WithField("component", "afip.wsaa")

const (
	DefaultService = "wsfe"
	DefaultTTL     = 20 * time.Minute
	Namespace      = "http://wsaa.view.sua.dvadac.desein.afip.gov"
)

type Config struct {
	Service     string
	CertPath    string
	KeyPath     string
	KeyPassword []byte
	Endpoint    string
	HTTPClient  *http.Client
	// TTL is the width of the TRA validity window.
	TTL time.Duration
	Now func() time.Time
}

// ConfigFromCredentials targets the WSAA endpoint of the credentials' environment.
func ConfigFromCredentials(c afip.Credentials, httpClient *http.Client) Config {
	return Config{
		Service:     DefaultService,
		CertPath:    c.CertPath,
		KeyPath:     c.KeyPath,
		KeyPassword: c.KeyPassword,
		Endpoint:    c.Environment.WSAAURL(),
		HTTPClient:  httpClient,
	}
}

// Acquirer exchanges a signed TRA for an access ticket.
type Acquirer struct {
	cfg  Config
	soap *soap.Client
}

func NewAcquirer(cfg Config) *Acquirer {
	if cfg.Service == "" {
		cfg.Service = DefaultService
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Acquirer{cfg: cfg, soap: soap.NewClient(cfg.Endpoint, cfg.HTTPClient)}
}

// Authenticator adapts Acquire for afip.NewTokenProvider.
func (a *Acquirer) Authenticator() afip.Authenticator {
	return a.Acquire
}

// Acquire performs one loginCms round-trip. Certificate and key problems are reported
// as *afip.ConfigError before any network I/O. WSAA faults become *afip.AuthError.
func (a *Acquirer) Acquire(ctx context.Context) (afip.Ticket, error) {
	now := a.cfg.Now()

	signer, err := LoadCMSSigner(a.cfg.CertPath, a.cfg.KeyPath, a.cfg.KeyPassword, now)
	if err != nil {
		return afip.Ticket{}, err
	}

	tra, err := NewTicketRequest(a.cfg.Service, now, a.cfg.TTL)
	if err != nil {
		return afip.Ticket{}, &afip.ConfigError{Field: "service", Err: err}
	}
	content, err := tra.Bytes()
	if err != nil {
		return afip.Ticket{}, authFailure("render TRA", err)
	}
	cms, err := signer.Sign(content)
	if err != nil {
		return afip.Ticket{}, authFailure("sign TRA", err)
	}

	log := logger.WithFields(logrus.Fields{"service": a.cfg.Service, "uniqueId": tra.UniqueID})
	log.Info("Calling WSAA loginCms")

	doc, op := soap.NewRequest(Namespace, "loginCms")
	soap.AddText(op, "in0", base64.StdEncoding.EncodeToString(cms))

	resp, err := a.soap.Call(ctx, "", doc)
	if err != nil {
		var fault *soap.Fault
		if errors.As(err, &fault) {
			return afip.Ticket{}, classifyFault(fault)
		}
		return afip.Ticket{}, authFailure("loginCms", err)
	}

	ret := soap.Child(resp, "loginCmsReturn")
	if ret == nil {
		return afip.Ticket{}, authFailure("loginCms", errors.New("response without loginCmsReturn"))
	}

	t, err := ParseTicketResponse(ret.Text())
	if err != nil {
		return afip.Ticket{}, authFailure("loginCms", err)
	}
	log.Debugf("WSAA ticket generated %s, expires %s", t.IssuedAt.Format(time.RFC3339), t.ExpiresAt.Format(time.RFC3339))
	return t, nil
}

func classifyFault(f *soap.Fault) error {
	kind := afip.ErrAuthentication
	if strings.Contains(f.Code, "alreadyAuthenticated") || strings.Contains(f.String, "alreadyAuthenticated") {
		kind = afip.ErrAlreadyAuthenticated
	}
	return &afip.AuthError{Kind: kind, Code: f.Code, Message: f.String, Err: f}
}

func authFailure(step string, err error) error {
	return &afip.AuthError{Kind: afip.ErrAuthentication, Message: step + ": " + err.Error(), Err: err}
}
