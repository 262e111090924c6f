package certificate

import (
	"bytes"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"text/template"
)

const MimeType = "text/markdown"

var documentTemplate = template.Must(template.New("certificate").Funcs(template.FuncMap{
	"limits": formatLimits,
}).Parse(`# Certificate of Liability Insurance

**Certificate number:** {{.Number}}
**Date issued:** {{.IssuedAt}}

This certificate is issued as a matter of information only and confers no rights upon the
certificate holder. It does not amend, extend or alter the coverage afforded by the policies below.

## Insured

{{.InsuredName}}{{if .InsuredAddress}}
{{.InsuredAddress}}{{end}}

## Coverages

| Type of insurance | Insurer | Policy number | Effective | Expiration | Limits |
|---|---|---|---|---|---|
{{- range .Lines}}
| {{.Name}} | {{.Carrier}}{{if .NAIC}} (NAIC {{.NAIC}}){{end}} | {{.PolicyNumber}} | {{.EffectiveDate}} | {{.ExpirationDate}} | {{limits .Limits}} |
{{- end}}
{{if .Description}}
## Description of operations

{{.Description}}
{{end}}{{if .AdditionalInsured}}
The certificate holder is included as an additional insured where required by written contract.
{{end}}
## Certificate holder

{{.HolderName}}
{{.HolderAddress}}
`))

// Render fills c.Document with the Markdown certificate.
func Render(c *Certificate) error {
	var buf bytes.Buffer
	if err := documentTemplate.Execute(&buf, c); err != nil {
		return fmt.Errorf("rendering certificate %s: %w", c.Number, err)
	}
	c.Document = buf.String()
	return nil
}

func formatLimits(limits map[string]int64) string {
	if len(limits) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(limits))
	for k := range limits {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", limitLabel(k), Dollars(limits[k])))
	}
	return strings.Join(parts, "<br>")
}

func limitLabel(key string) string {
	words := strings.Fields(strings.ReplaceAll(key, "_", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Dollars formats n with thousands separators, e.g. $1,000,000.
func Dollars(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	s := strconv.FormatInt(n, 10)
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-$" + b.String()
	}
	return "$" + b.String()
}
