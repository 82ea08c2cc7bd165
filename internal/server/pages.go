package server

import (
	"html/template"
	"net/http"

	"github.com/desertthunder/hego/internal/models"
)

var pages = template.Must(template.New("pages").Parse(`
{{define "head"}}<!DOCTYPE html>
<html>
<head>
    <title>{{.}} · hego</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               max-width: 28rem; margin: 4rem auto; color: #222; }
        .error { color: #b00020; }
        .notice { color: #666; }
        label { display: block; margin: 0.5rem 0; }
    </style>
</head>
<body>
{{end}}

{{define "foot"}}</body>
</html>
{{end}}

{{define "home"}}{{template "head" "Home"}}
{{if .User}}
    <h1>Hi, {{.User.DisplayName}}</h1>
    <p><a href="/profile">Profile</a> · <a href="/session">Session</a></p>
    <form method="post" action="/logout"><button type="submit">Sign out</button></form>
{{else}}
    <h1>hego</h1>
    {{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
    <p><a href="/login">Sign in</a></p>
{{end}}
{{template "foot"}}{{end}}

{{define "login"}}{{template "head" "Sign in"}}
    <h1>Sign in</h1>
    {{if .Notice}}<p class="notice">{{.Notice}}</p>{{end}}
    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    <form method="post" action="/login">
        <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
        <label>Password <input type="password" name="password" required></label>
        <button type="submit">Sign in</button>
    </form>
    {{range .Providers}}<p><a href="/auth/{{.}}">Continue with {{.}}</a></p>{{end}}
{{template "foot"}}{{end}}

{{define "gate"}}{{template "head" "Lavori in corso"}}
    <h1>Lavori in corso</h1>
    <p class="notice">This site is not open yet.</p>
    {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
    <form method="post" action="{{.Action}}">
        <label>Password <input type="password" name="password" required></label>
        <button type="submit">Enter</button>
    </form>
{{template "foot"}}{{end}}
`))

type pageData struct {
	User      *models.UserProfile
	Notice    string
	Error     string
	Email     string
	Action    string
	Providers []string
}

func render(w http.ResponseWriter, status int, name string, data pageData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = pages.ExecuteTemplate(w, name, data)
}
