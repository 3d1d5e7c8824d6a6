package detection

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
)

// DefaultBodyLimit caps how much of a request body is retained for analysis.
const DefaultBodyLimit int64 = 64 << 10

// Request is the read-only view of an inbound request that analyzers inspect.
type Request struct {
	Method     string
	Host       string
	Path       string
	URI        string
	RemoteAddr string
	Header     http.Header
	Query      url.Values
	Form       url.Values
	Body       string
}

// NewRequest snapshots r for analysis. At most bodyLimit bytes of the body are
// read; the body is restored so later handlers can still consume it.
func NewRequest(r *http.Request, bodyLimit int64) *Request {
	if bodyLimit <= 0 {
		bodyLimit = DefaultBodyLimit
	}

	req := &Request{
		Method:     strings.ToUpper(r.Method),
		Host:       r.Host,
		URI:        r.RequestURI,
		RemoteAddr: r.RemoteAddr,
		Header:     r.Header.Clone(),
		Form:       url.Values{},
	}
	if req.Header == nil {
		req.Header = http.Header{}
	}

	if r.URL != nil {
		req.Path = r.URL.Path
		req.Query = r.URL.Query()
		if req.URI == "" {
			req.URI = r.URL.RequestURI()
		}
	}
	if req.Query == nil {
		req.Query = url.Values{}
	}

	if r.Body != nil && r.Body != http.NoBody {
		data, _ := io.ReadAll(io.LimitReader(r.Body, bodyLimit))
		r.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(data), r.Body), Closer: r.Body}
		req.Body = string(data)
	}

	if req.Body != "" && isFormEncoded(r.Header.Get("Content-Type")) {
		if form, err := url.ParseQuery(req.Body); err == nil {
			req.Form = form
		}
	}

	return req
}

type readCloser struct {
	io.Reader
	io.Closer
}

func isFormEncoded(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/x-www-form-urlencoded"
}

// UserAgent returns the User-Agent header.
func (r *Request) UserAgent() string {
	return r.Header.Get("User-Agent")
}

// FormValue returns the first POST value for any of the given field names (case-insensitive).
func (r *Request) FormValue(names ...string) (string, bool) {
	return lookupValue(r.Form, names...)
}

// ParamValues returns query and POST values whose key matches one of names (case-insensitive).
func (r *Request) ParamValues(names ...string) []string {
	var out []string
	for _, values := range []url.Values{r.Query, r.Form} {
		for key, vals := range values {
			for _, name := range names {
				if strings.EqualFold(key, name) {
					out = append(out, vals...)
					break
				}
			}
		}
	}
	return out
}

// Payloads returns every attacker-controlled string in the request (URI, query
// and POST values, raw body) together with their URL- and HTML-decoded variants.
func (r *Request) Payloads() []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(s string) {
		for _, v := range decodeVariants(s) {
			if v == "" {
				continue
			}
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}

	add(r.URI)
	for _, vals := range r.Query {
		for _, v := range vals {
			add(v)
		}
	}
	for _, vals := range r.Form {
		for _, v := range vals {
			add(v)
		}
	}
	if len(r.Form) == 0 {
		add(r.Body)
	}
	return out
}

func lookupValue(values url.Values, names ...string) (string, bool) {
	for key, vals := range values {
		if len(vals) == 0 {
			continue
		}
		for _, name := range names {
			if strings.EqualFold(key, name) {
				return vals[0], true
			}
		}
	}
	return "", false
}
