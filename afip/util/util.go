package util

import (
	"os"
	"strconv"
)

func DebugEnabled() bool {
	return etb("AFIP_DEBUG")
}

// HttpTraceEnabled turns on SOAP request/response dumps in the debug log.
func HttpTraceEnabled() bool {
	return etb("AFIP_HTTP_TRACE")
}

func etb(envName string) bool {
	v, ok := os.LookupEnv(envName)
	if !ok {
		return false
	}

	bv, err := strconv.ParseBool(v)

	return err == nil && bv
}
