package afip

import (
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// TicketStore keeps a ticket across restarts. Any implementation may lose data at any
// time; the provider then simply logs in again.
type TicketStore interface {
	Load() (Ticket, error)
	Save(Ticket) error
	Remove() error
}

// FileTicketStore writes the ticket as JSON to <dir>/tickets/ta_<cuit>_<service>.json.
type FileTicketStore struct {
	path string
}

func NewFileTicketStore(dir, cuit, service string) (*FileTicketStore, error) {
	ticketsDir := filepath.Join(dir, "tickets")
	if err := os.MkdirAll(ticketsDir, 0o700); err != nil {
		return nil, errors.Wrap(err, "create ticket cache dir")
	}
	return &FileTicketStore{path: filepath.Join(ticketsDir, "ta_"+cuit+"_"+service+".json")}, nil
}

func (s *FileTicketStore) Path() string { return s.path }

func (s *FileTicketStore) Load() (Ticket, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		return Ticket{}, err
	}
	return decodeTicket(b)
}

func (s *FileTicketStore) Save(t Ticket) error {
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, encodeTicket(t), 0o600); err != nil {
		return errors.Wrap(err, "write ticket")
	}
	return os.Rename(tmp, s.path)
}

func (s *FileTicketStore) Remove() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func encodeTicket(t Ticket) []byte {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("token")
	e.Str(t.Token)
	e.FieldStart("sign")
	e.Str(t.Sign)
	e.FieldStart("expires_at")
	e.Str(t.ExpiresAt.Format(time.RFC3339))
	e.FieldStart("issued_at")
	e.Str(t.IssuedAt.Format(time.RFC3339))
	e.ObjEnd()
	return e.Bytes()
}

func decodeTicket(b []byte) (Ticket, error) {
	var t Ticket
	err := jx.DecodeBytes(b).Obj(func(d *jx.Decoder, key string) error {
		switch key {
		case "token":
			v, err := d.Str()
			t.Token = v
			return err
		case "sign":
			v, err := d.Str()
			t.Sign = v
			return err
		case "expires_at", "issued_at":
			v, err := d.Str()
			if err != nil {
				return err
			}
			ts, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return errors.Wrapf(err, "parse %s", key)
			}
			if key == "expires_at" {
				t.ExpiresAt = ts
			} else {
				t.IssuedAt = ts
			}
			return nil
		default:
			return d.Skip()
		}
	})
	if err != nil {
		return Ticket{}, errors.Wrap(err, "decode ticket")
	}
	if t.Token == "" || t.Sign == "" {
		return Ticket{}, ErrNoTicket
	}
	return t, nil
}
