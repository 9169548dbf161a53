package afip

import (
	"fmt"
	"strings"
	"time"
)

type Environment int

const (
	Homologation Environment = iota
	Production
)

// ArgentinaTime is the fixed UTC-3 zone AFIP uses for invoice and ticket dates.
var ArgentinaTime = time.FixedZone("ART", -3*60*60)

// WSAAURL returns the loginCms endpoint.
func (e Environment) WSAAURL() string {
	switch e {
	case Production:
		return "https://wsaa.afip.gov.ar/ws/services/LoginCms"
	case Homologation:
		return "https://wsaahomo.afip.gov.ar/ws/services/LoginCms"
	}
	panic("Invalid environment")
}

// WSFEURL returns the WSFEv1 service endpoint.
func (e Environment) WSFEURL() string {
	switch e {
	case Production:
		return "https://servicios1.afip.gov.ar/wsfev1/service.asmx"
	case Homologation:
		return "https://wswhomo.afip.gov.ar/wsfev1/service.asmx"
	}
	panic("Invalid environment")
}

func (e Environment) Name() string {
	switch e {
	case Production:
		return "produccion"
	case Homologation:
		return "homologacion"
	}
	panic("Invalid environment")
}

func (e Environment) String() string {
	return e.Name()
}

func (e *Environment) UnmarshalText(text []byte) error {
	val := strings.ToLower(strings.TrimSpace(string(text)))

	switch val {
	case "produccion", "production", "prod":
		*e = Production
	case "homologacion", "homologation", "homo", "test":
		*e = Homologation
	default:
		return fmt.Errorf("invalid AFIP_ENV: %q (allowed: homologacion, produccion)", val)
	}
	return nil
}
