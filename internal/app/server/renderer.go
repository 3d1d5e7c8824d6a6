package server

import (
	"net/http"
	"strings"
)

// Renderer writes the deceptive page for a request. It never sees detection results.
type Renderer interface {
	Render(w http.ResponseWriter, r *http.Request)
}

// StaticRenderer serves fixed WordPress-shaped pages.
type StaticRenderer struct {
	SiteName string
}

const loginPage = `<!DOCTYPE html>
<html lang="en-US"><head><meta charset="UTF-8"><title>Log In &lsaquo; {{site}} &#8212; WordPress</title>
<meta name="robots" content="noindex,nofollow"></head>
<body class="login wp-core-ui"><div id="login"><h1><a href="https://wordpress.org/">Powered by WordPress</a></h1>
<form name="loginform" id="loginform" action="/wp-login.php" method="post">
<p><label for="user_login">Username or Email Address</label><input type="text" name="log" id="user_login" size="20"></p>
<p><label for="user_pass">Password</label><input type="password" name="pwd" id="user_pass" size="20"></p>
<p class="forgetmenot"><input name="rememberme" type="checkbox" id="rememberme" value="forever"> <label for="rememberme">Remember Me</label></p>
<p class="submit"><input type="submit" name="wp-submit" id="wp-submit" class="button button-primary button-large" value="Log In">
<input type="hidden" name="redirect_to" value="/wp-admin/"><input type="hidden" name="testcookie" value="1"></p>
</form></div></body></html>
`

const homePage = `<!DOCTYPE html>
<html lang="en-US"><head><meta charset="UTF-8"><title>{{site}}</title>
<meta name="generator" content="WordPress 6.4.3">
<link rel="https://api.w.org/" href="/wp-json/"><link rel="EditURI" type="application/rsd+xml" href="/xmlrpc.php?rsd"></head>
<body class="home blog"><header><h1 class="site-title"><a href="/">{{site}}</a></h1></header>
<main><article><h2><a href="/?p=1">Hello world!</a></h2><p>Welcome to WordPress. This is your first post. Edit or delete it, then start writing!</p></article>
<section class="comment-respond"><form action="/wp-comments-post.php" method="post">
<textarea name="comment"></textarea><input name="author" type="text"><input name="email" type="text"><input name="url" type="text">
<input type="hidden" name="comment_post_ID" value="1"><input type="submit" value="Post Comment"></form></section></main>
</body></html>
`

const xmlrpcGetBody = "XML-RPC server accepts POST requests only."

const xmlrpcFault = `<?xml version="1.0" encoding="UTF-8"?>
<methodResponse><fault><value><struct>
<member><name>faultCode</name><value><int>403</int></value></member>
<member><name>faultString</name><value><string>Incorrect username or password.</string></value></member>
</struct></value></fault></methodResponse>
`

func (s StaticRenderer) Render(w http.ResponseWriter, r *http.Request) {
	site := s.SiteName
	if site == "" {
		site = "My Blog"
	}

	h := w.Header()
	h.Set("X-Powered-By", "PHP/8.1.27")
	h.Set("Link", `</wp-json/>; rel="https://api.w.org/"`)

	path := strings.ToLower(r.URL.Path)
	switch {
	case path == "/xmlrpc.php" && r.Method == http.MethodPost:
		h.Set("Content-Type", "text/xml; charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(xmlrpcFault))
	case path == "/xmlrpc.php":
		h.Set("Content-Type", "text/plain; charset=UTF-8")
		w.WriteHeader(http.StatusMethodNotAllowed)
		_, _ = w.Write([]byte(xmlrpcGetBody))
	case path == "/wp-login.php" || strings.HasPrefix(path, "/wp-admin"):
		h.Set("Content-Type", "text/html; charset=UTF-8")
		h.Set("Cache-Control", "no-cache, must-revalidate, max-age=0")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(strings.ReplaceAll(loginPage, "{{site}}", site)))
	default:
		h.Set("Content-Type", "text/html; charset=UTF-8")
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			_, _ = w.Write([]byte(strings.ReplaceAll(homePage, "{{site}}", site)))
		}
	}
}
