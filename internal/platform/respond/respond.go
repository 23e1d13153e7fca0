// Package respond renders router-level errors as RFC 9457 problem details,
// negotiating JSON or CBOR the same way the API does.
package respond

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/go-chi/chi/v5"

	applog "github.com/janisto/storytime-api/internal/platform/logging"
)

const (
	contentTypeProblemJSON = "application/problem+json"
	contentTypeProblemCBOR = "application/problem+cbor"
	errorSchemaPath        = "/schemas/ErrorModel.json"
)

// problem mirrors huma.ErrorModel plus the $schema link huma adds.
type problem struct {
	Schema string `json:"$schema,omitempty"`
	Title  string `json:"title,omitempty"`
	Status int    `json:"status,omitempty"`
	Detail string `json:"detail,omitempty"`
}

// NotFoundHandler emits a 404 problem response.
func NotFoundHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProblem(w, r, http.StatusNotFound, "resource not found")
	}
}

// MethodNotAllowedHandler emits a 405 problem response with an Allow header.
func MethodNotAllowedHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if allow := allowedMethods(r); len(allow) > 0 {
			w.Header().Set("Allow", strings.Join(allow, ", "))
		}
		writeProblem(w, r, http.StatusMethodNotAllowed, fmt.Sprintf("method %s not allowed", r.Method))
	}
}

// Recoverer converts panics into 500 problem responses. http.ErrAbortHandler
// is re-panicked so the server can abort the connection.
func Recoverer() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rw := &responseWriter{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}
				var err error
				switch v := rec.(type) {
				case error:
					err = v
				default:
					err = fmt.Errorf("%v", v)
				}
				applog.LogError(r.Context(), "panic recovered", fmt.Errorf("%w\n%s", err, debug.Stack()))
				if rw.wroteHeader {
					return
				}
				detail := "internal server error"
				if id := applog.CorrelationID(r.Context()); id != "" {
					detail += " (reference " + id + ")"
				}
				writeProblem(rw, r, http.StatusInternalServerError, detail)
			}()
			next.ServeHTTP(rw, r)
		})
	}
}

// responseWriter records whether the header was sent.
type responseWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.wroteHeader = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	return rw.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	schema := schemaURL(r)
	p := problem{
		Schema: schema,
		Title:  http.StatusText(status),
		Status: status,
		Detail: detail,
	}

	var (
		body []byte
		ct   string
		err  error
	)
	if selectFormat(r.Header.Get("Accept")) {
		ct = contentTypeProblemCBOR
		body, err = cbor.Marshal(p)
	} else {
		ct = contentTypeProblemJSON
		var buf bytes.Buffer
		enc := json.NewEncoder(&buf)
		enc.SetEscapeHTML(false)
		err = enc.Encode(p)
		body = buf.Bytes()
	}
	if err != nil {
		applog.LogError(r.Context(), "failed to encode problem", err)
		http.Error(w, http.StatusText(status), status)
		return
	}

	h := w.Header()
	ensureVary(h, "Origin", "Accept")
	h.Set("Content-Type", ct)
	h.Set("Link", "<"+schema+">; rel=\"describedBy\"")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		applog.LogError(r.Context(), "failed to write problem", err)
	}
}

// ensureVary adds values to Vary unless already listed.
func ensureVary(h http.Header, values ...string) {
	seen := make(map[string]struct{})
	for _, v := range h.Values("Vary") {
		for part := range strings.SplitSeq(v, ",") {
			seen[strings.ToLower(strings.TrimSpace(part))] = struct{}{}
		}
	}
	for _, v := range values {
		key := strings.ToLower(v)
		if _, ok := seen[key]; !ok {
			h.Add("Vary", v)
			seen[key] = struct{}{}
		}
	}
}

func schemaURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = strings.ToLower(strings.TrimSpace(strings.Split(proto, ",")[0]))
	}
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	return scheme + "://" + host + errorSchemaPath
}

type mediaRange struct {
	typ     string
	subtype string
	q       float64
}

// parseAccept splits an Accept header into media ranges. Invalid or
// out-of-range q values count as 1.
func parseAccept(header string) []mediaRange {
	var ranges []mediaRange
	for part := range strings.SplitSeq(header, ",") {
		fields := strings.Split(part, ";")
		mt := strings.ToLower(strings.TrimSpace(fields[0]))
		if mt == "" {
			continue
		}
		typ, subtype, ok := strings.Cut(mt, "/")
		if !ok {
			subtype = "*"
		}
		mr := mediaRange{typ: strings.TrimSpace(typ), subtype: strings.TrimSpace(subtype), q: 1}
		for _, param := range fields[1:] {
			k, v, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(k) != "q" {
				continue
			}
			if q, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && q >= 0 && q <= 1 {
				mr.q = q
			}
		}
		ranges = append(ranges, mr)
	}
	return ranges
}

// specificity of a media range against a format ("json" or "cbor"), or -1
// when it does not match.
func (m mediaRange) specificity(format string) int {
	switch {
	case m.typ == "*" && m.subtype == "*":
		return 0
	case m.typ != "application":
		return -1
	case m.subtype == "*":
		return 1
	case m.subtype == "*+"+format:
		return 2
	case m.subtype == format:
		return 3
	case m.subtype == "problem+"+format:
		return 4
	default:
		return -1
	}
}

type preference struct {
	q    float64
	spec int
}

func best(ranges []mediaRange, format string) preference {
	p := preference{q: -1, spec: -1}
	for _, mr := range ranges {
		s := mr.specificity(format)
		if s < 0 {
			continue
		}
		if mr.q == 0 && s >= 3 {
			// Explicitly excluded.
			return preference{q: -1, spec: -1}
		}
		if mr.q > p.q || (mr.q == p.q && s > p.spec) {
			p = preference{q: mr.q, spec: s}
		}
	}
	return p
}

// selectFormat reports whether CBOR should be used for the given Accept
// header. The q value ranks first and specificity breaks ties; JSON wins
// full ties.
func selectFormat(accept string) bool {
	ranges := parseAccept(accept)
	if len(ranges) == 0 {
		return false
	}
	c := best(ranges, "cbor")
	if c.q <= 0 {
		return false
	}
	j := best(ranges, "json")
	return c.q > j.q || (c.q == j.q && c.spec > j.spec)
}

// allowedMethods inspects chi's routing context to discover allowed methods.
func allowedMethods(r *http.Request) []string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil || rctx.Routes == nil {
		return nil
	}

	routePath := rctx.RoutePath
	if routePath == "" {
		if r.URL.RawPath != "" {
			routePath = r.URL.RawPath
		} else {
			routePath = r.URL.Path
		}
		if routePath == "" {
			routePath = "/"
		}
	}

	methods := []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPost,
		http.MethodPut,
		http.MethodPatch,
		http.MethodDelete,
		http.MethodOptions,
	}
	allowed := make([]string, 0, len(methods))
	for _, method := range methods {
		if rctx.Routes.Match(chi.NewRouteContext(), method, routePath) {
			allowed = append(allowed, method)
		}
	}
	return allowed
}
