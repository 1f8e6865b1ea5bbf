package site

import (
	"bytes"
	"html/template"
	"strings"

	"git.home.luguber.info/inful/bookbuilder/internal/book"
)

// navView is a NavTree projected for a specific page: hrefs are relative to
// that page and the active leaf is marked.
type navView struct {
	Groups []navGroupView
}

type navGroupView struct {
	Title  string
	Leaves []navLeafView
}

type navLeafView struct {
	Title  string
	Href   string
	Active bool
}

type pageData struct {
	BookTitle string
	Author    string
	Date      string
	Title     string
	Content   template.HTML
	Nav       navView
	Prefix    string // relative path prefix back to the site root
	EditURL   string
	GitStamp  string
}

type indexData struct {
	BookTitle string
	Author    string
	Date      string
	Nav       navView
	GitStamp  string
}

const pageTemplateText = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}} - {{.BookTitle}}</title>
<link rel="stylesheet" href="{{.Prefix}}style.css">
</head>
<body>
<header>
<p class="book-title"><a href="{{.Prefix}}index.html">{{.BookTitle}}</a></p>
{{if .Author}}<p class="book-author">{{.Author}}</p>{{end}}
{{if .Date}}<p class="book-date">{{.Date}}</p>{{end}}
</header>
<nav>
{{range .Nav.Groups}}<section class="nav-part">
<h2>{{.Title}}</h2>
<ul>
{{range .Leaves}}<li{{if .Active}} class="active"{{end}}><a href="{{.Href}}">{{.Title}}</a></li>
{{end}}</ul>
</section>
{{end}}</nav>
<main>
{{.Content}}
{{if .EditURL}}<p class="edit-link"><a href="{{.EditURL}}">Edit this page</a></p>{{end}}
</main>
{{if .GitStamp}}<footer><p class="git-stamp">{{.GitStamp}}</p></footer>
{{end}}</body>
</html>
`

const indexTemplateText = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.BookTitle}}</title>
<link rel="stylesheet" href="style.css">
</head>
<body>
<header>
<h1>{{.BookTitle}}</h1>
{{if .Author}}<p class="book-author">{{.Author}}</p>{{end}}
{{if .Date}}<p class="book-date">{{.Date}}</p>{{end}}
</header>
<nav>
{{range .Nav.Groups}}<section class="nav-part">
<h2>{{.Title}}</h2>
<ul>
{{range .Leaves}}<li><a href="{{.Href}}">{{.Title}}</a></li>
{{end}}</ul>
</section>
{{end}}</nav>
{{if .GitStamp}}<footer><p class="git-stamp">{{.GitStamp}}</p></footer>
{{end}}</body>
</html>
`

const styleCSS = `body {
  max-width: 60rem;
  margin: 0 auto;
  padding: 1rem 2rem;
  font-family: system-ui, sans-serif;
  line-height: 1.6;
  color: #222;
}
header .book-title { font-size: 1.3rem; font-weight: 700; margin: 0; }
header .book-title a { color: inherit; text-decoration: none; }
header .book-author, header .book-date { margin: 0; color: #666; font-size: 0.9rem; }
nav { border-right: 1px solid #ddd; padding-right: 1rem; float: left; width: 16rem; }
nav h2 { font-size: 0.95rem; text-transform: uppercase; letter-spacing: 0.05em; color: #444; }
nav ul { list-style: none; padding-left: 0; }
nav li { margin: 0.25rem 0; }
nav li.active > a { font-weight: 700; }
nav a { color: #0a58ca; text-decoration: none; }
nav a:hover { text-decoration: underline; }
main { margin-left: 18rem; }
main pre { background: #f6f8fa; padding: 0.75rem; overflow-x: auto; border-radius: 4px; }
main code { font-family: ui-monospace, monospace; font-size: 0.92em; }
.cell-output { background: #fbfbfb; border-left: 3px solid #ccc; }
.cell-error { border-left-color: #c00; color: #c00; }
.edit-link { margin-top: 2rem; font-size: 0.85rem; }
footer { clear: both; margin-top: 2rem; color: #999; font-size: 0.8rem; }
`

var (
	pageTemplate  = template.Must(template.New("page").Parse(pageTemplateText))
	indexTemplate = template.Must(template.New("index").Parse(indexTemplateText))
)

// htmlFragment marks an already-rendered fragment as safe for template
// interpolation. Fragments come from the chapter renderer, never from user
// input at serve time.
func htmlFragment(b []byte) template.HTML { return template.HTML(b) }

// rootPrefix returns the "../" sequence that leads from a site-relative page
// path back to the site root.
func rootPrefix(outputPath string) string {
	depth := strings.Count(outputPath, "/")
	return strings.Repeat("../", depth)
}

// navFor projects the navigation tree for one page: leaf hrefs are rewritten
// relative to the page and the page's own leaf is marked active. Order is
// carried through untouched.
func navFor(nav *book.NavTree, outputPath string) navView {
	prefix := rootPrefix(outputPath)
	view := navView{}
	for _, g := range nav.Groups {
		gv := navGroupView{Title: g.Title}
		for _, l := range g.Leaves {
			gv.Leaves = append(gv.Leaves, navLeafView{
				Title:  l.Title,
				Href:   prefix + l.Href,
				Active: l.Href == outputPath,
			})
		}
		view.Groups = append(view.Groups, gv)
	}
	return view
}

func renderPage(d pageData) ([]byte, error) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderIndex(d indexData) ([]byte, error) {
	var buf bytes.Buffer
	if err := indexTemplate.Execute(&buf, d); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
