package web

import "embed"

// TemplatesFS embeds the page templates. Each page is parsed together with
// layout.html.
//
//go:embed templates/*.html
var TemplatesFS embed.FS

// StaticFS embeds stylesheets served under /static/.
//
//go:embed static/*
var StaticFS embed.FS
