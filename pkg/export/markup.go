package export

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"
)

var markupTemplate = template.Must(template.New("labels").Funcs(template.FuncMap{
	"pngURI": func(raw []byte) template.URL {
		return template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(raw))
	},
	"stamp": func(h Header) string {
		return h.GeneratedAt.Format("2006-01-02 15:04")
	},
}).Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: A4; margin: 10mm; }
.page { page-break-after: always; }
.page:last-child { page-break-after: auto; }
.grid { display: grid; grid-template-columns: 1fr 1fr; grid-template-rows: 1fr 1fr; gap: 6mm; height: 250mm; }
.slot { border: 1px solid #222; padding: 4mm; text-align: center; }
.slot.empty { border: none; }
.slot img { width: 60mm; height: 60mm; }
.placeholder { width: 60mm; height: 60mm; margin: 0 auto; border: 1px dashed #888; line-height: 60mm; color: #888; }
.code { font-family: monospace; font-size: 9pt; word-break: break-all; }
</style>
</head>
<body>
{{range .Pages}}<section class="page">
<header>
<strong>{{.Header.ShipmentCode}}</strong> · {{.Header.ClientName}} · {{.Header.Destination}}
<span>Página {{.Header.PageIndex}} de {{.Header.PageCount}}</span>
<small>{{stamp .Header}}</small>
</header>
<div class="grid">
{{range .Slots}}{{if .Entry}}<div class="slot">
{{if .Entry.Placeholder}}<div class="placeholder">QR no disponible</div>{{else}}<img src="{{pngURI .Entry.Image}}" alt="{{.Entry.Code}}">{{end}}
<div class="code">{{.Entry.Code}}</div>
<div>{{.Entry.ArticleRef}} {{.Entry.Description}}</div>
<div>Caja {{.Entry.CartonSequence}} de {{.Entry.CartonTotal}}</div>
</div>{{else}}<div class="slot empty"></div>{{end}}
{{end}}</div>
</section>
{{end}}</body>
</html>
`))

// RenderMarkup produces the HTML rendition of a document with images inlined.
func RenderMarkup(doc *Document) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("document is nil")
	}
	buf := &bytes.Buffer{}
	if err := markupTemplate.Execute(buf, doc); err != nil {
		return nil, fmt.Errorf("render label markup: %w", err)
	}
	return buf.Bytes(), nil
}
