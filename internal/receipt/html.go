package receipt

import (
	"bytes"
	"html/template"
)

var htmlReceipt = template.Must(template.New("receipt").Parse(`<!DOCTYPE html>
<html lang="{{.Lang}}">
<head>
<meta charset="utf-8">
<title>{{.Number}}</title>
<style>
body{font-family:Arial,sans-serif;margin:24px;color:#222}
h1{font-size:20px;margin:0 0 4px}
table{width:100%;border-collapse:collapse;margin-top:16px}
td{padding:6px;border-bottom:1px solid #ddd}
.total{font-weight:bold;font-size:18px;text-align:right;margin-top:16px}
.muted{color:#777;font-size:12px}
</style>
</head>
<body onload="window.print()" onafterprint="window.close()">
<h1>Mboa Care</h1>
<div class="muted">{{.Number}} · {{.GeneratedAt.Format "02/01/2006 15:04"}}</div>
<table>
<tr><td>Patient</td><td>{{.Patient.FullName}}{{if .Patient.ID}} ({{.Patient.ID}}){{end}}</td></tr>
{{if .Patient.Telephone}}<tr><td>Tél.</td><td>{{.Patient.Telephone}}</td></tr>{{end}}
<tr><td>Libellé</td><td>{{.Invoice.Libelle}}</td></tr>
<tr><td>Type</td><td>{{.TypeLabel}}</td></tr>
<tr><td>Date</td><td>{{.Invoice.DateCreation.Format "02/01/2006"}}</td></tr>
</table>
<div class="total">{{.Amount}}</div>
</body>
</html>
`))

// HTMLPrinter renders a self-contained page that opens the print dialog when
// loaded and closes itself afterwards.
type HTMLPrinter struct{}

func (HTMLPrinter) Render(d Document) (Rendered, error) {
	var buf bytes.Buffer
	if err := htmlReceipt.Execute(&buf, d); err != nil {
		return Rendered{}, err
	}
	return Rendered{ContentType: "text/html; charset=utf-8", Body: buf.Bytes()}, nil
}
