package webchat

import (
	_ "embed"
	"html/template"
)

//go:embed widget.js
var widgetJS []byte

//go:embed demo.html
var demoHTML string

var demoPage = template.Must(template.New("demo").Parse(demoHTML))
