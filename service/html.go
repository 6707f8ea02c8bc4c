package service

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"

	"github.com/Comcast/sage/core"
	"github.com/Comcast/sage/present"
	"github.com/Comcast/sage/text"
	"github.com/Comcast/sage/tools"

	"go.uber.org/zap"
)

// CookieName is the cookie that remembers a browser's session.
const CookieName = "sage-session"

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { margin: 2em; font-family: sans-serif; max-width: 40em }
.notice { color: #a00 }
.rec { border-left: 3px solid #888; padding-left: 1em; margin: 1em 0 }
</style>
</head>
<body>
{{if .KBs}}
<h1>Knowledge bases</h1>
{{range .KBs}}
<form method="POST" action="/open">
<input type="hidden" name="kb" value="{{.}}">
<button type="submit">{{.}}</button>
<a href="/kb/{{.}}">about</a>
</form>
{{end}}
{{else}}
<h1>{{.View.Message}}</h1>
{{with .View.Notice}}<p class="notice">{{.}}</p>{{end}}
{{with .View.Question}}
<form method="POST" action="/s/{{$.Session}}/answer">
<input type="hidden" name="question" value="{{.ID}}">
{{$multi := .Multi}}
{{range .Options}}
<div><label><input type="{{if $multi}}checkbox{{else}}radio{{end}}" name="option" value="{{.ID}}"> {{.Text}}</label></div>
{{end}}
<button type="submit">Next</button>
</form>
{{end}}
{{range .Recs}}
<div class="rec">{{.}}</div>
{{end}}
<form method="POST" action="/s/{{.Session}}/restart">
<button type="submit">Start Over</button>
</form>
{{end}}
</body>
</html>
`))

type page struct {
	Title   string
	KBs     []string
	Session string
	View    *present.View
	Recs    []template.HTML
}

func (s *Service) render(w http.ResponseWriter, status int, p *page) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := pageTemplate.Execute(w, p); err != nil {
		s.log().Warn("html render", zap.Error(err))
	}
}

func (s *Service) renderSnapshot(w http.ResponseWriter, snap *Snapshot, err error) {
	if snap == nil {
		http.Error(w, err.Error(), StatusOf(err))
		return
	}
	var r *text.Resources
	if rs, rerr := s.Resources(snap.Session); rerr == nil {
		r = rs
	}
	p := &page{
		Title:   snap.KB,
		Session: snap.Session,
		View:    snap.View,
	}
	for _, item := range snap.View.Recommendations {
		p.Recs = append(p.Recs, template.HTML(r.HTML(item.Key)))
	}
	status := http.StatusOK
	var ia *core.InvalidAnswer
	if err != nil && !errors.As(err, &ia) {
		status = StatusOf(err)
	}
	s.render(w, status, p)
}

func (s *Service) htmlRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie(CookieName); err == nil {
			if _, err := s.View(r.Context(), c.Value); err == nil {
				http.Redirect(w, r, "/s/"+c.Value, http.StatusSeeOther)
				return
			}
		}
		s.render(w, http.StatusOK, &page{
			Title: "sage",
			KBs:   s.Library.Names(),
		})
	})

	mux.HandleFunc("POST /open", func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.Open(r.Context(), r.FormValue("kb"))
		if snap == nil {
			http.Error(w, err.Error(), StatusOf(err))
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     CookieName,
			Value:    snap.Session,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		http.Redirect(w, r, "/s/"+snap.Session, http.StatusSeeOther)
	})

	mux.HandleFunc("GET /s/{id}", func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.View(r.Context(), r.PathValue("id"))
		s.renderSnapshot(w, snap, err)
	})

	mux.HandleFunc("POST /s/{id}/answer", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		snap, err := s.Submit(r.Context(), r.PathValue("id"), r.PostForm.Get("question"), r.PostForm["option"])
		s.renderSnapshot(w, snap, err)
	})

	mux.HandleFunc("POST /s/{id}/restart", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if _, err := s.Restart(r.Context(), id); err != nil && !core.IsFatal(err) {
			http.Error(w, err.Error(), StatusOf(err))
			return
		}
		http.Redirect(w, r, "/s/"+id, http.StatusSeeOther)
	})
	mux.HandleFunc("GET /kb/{name}", func(w http.ResponseWriter, r *http.Request) {
		c, err := s.Library.Get(r.PathValue("name"))
		if err != nil {
			http.Error(w, err.Error(), StatusOf(err))
			return
		}
		res := c.Resources(s.Text)
		a, err := tools.Analyze(r.Context(), c, res, nil)
		if err != nil {
			http.Error(w, err.Error(), StatusOf(err))
			return
		}
		var buf bytes.Buffer
		if err = tools.RenderKBPage(c.KB, res, a, &buf, []string{}); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes())
	})
}
