package http

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed assets/templates/terminal.html
var pageSource string

//go:embed assets/static
var assetFS embed.FS

var pageTemplate = template.Must(template.New("terminal").Parse(pageSource))

type pageData struct {
	Title string
}

// StaticFS returns the files served under /static
func StaticFS() fs.FS {
	sub, err := fs.Sub(assetFS, "assets/static")
	if err != nil {
		panic(err)
	}
	return sub
}
