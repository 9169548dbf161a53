package util

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"strings"
	"text/template"
	"time"
)

var funcMap = template.FuncMap{
	"base64": base64.StdEncoding.EncodeToString,
	"xml":    escapeXML,
	"rfc3339": func(t time.Time) string {
		return t.Format(time.RFC3339)
	},
}

// MergeTemplate renders tpl with model. Values passed through the xml func are escaped.
func MergeTemplate(tpl *string, model any) ([]byte, error) {

	tmpl, err := template.New("request").Funcs(funcMap).Parse(*tpl)
	if err != nil {
		return nil, err
	}

	var output bytes.Buffer

	err = tmpl.Execute(&output, model)
	if err != nil {
		return nil, err
	}
	return output.Bytes(), nil
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
