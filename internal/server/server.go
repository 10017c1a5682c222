package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	compiler "github.com/hanpama/populate/internal/compiler"
	eventbus "github.com/hanpama/populate/internal/eventbus"
	events "github.com/hanpama/populate/internal/events"
	populate "github.com/hanpama/populate/internal/populate"
	reqid "github.com/hanpama/populate/internal/reqid"
	schema "github.com/hanpama/populate/internal/schema"
)

// Handler is an http.Handler that compiles populate requests.
//
//	POST /compile   JSON (or msgpack) request, or an array of them
//	GET  /compile   query parameter form
//	POST /explain   like /compile, returns the intermediate results
//	GET  /index     the schema path index
//	GET  /schema    the loaded schema as SDL
//	GET  /healthz
type Handler struct {
	provider compiler.Provider
	opt      Options
}

type Options struct {
	// Pretty enables indented JSON responses (useful for dev).
	Pretty bool

	// MaxBodyBytes limits the size of the request body. 0 means unlimited.
	MaxBodyBytes int64

	// CORS configuration. If AllowedOrigins is empty, CORS is disabled.
	CORS CORSOptions
}

type Option func(*Options)

func WithPretty() Option              { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option { return func(o *Options) { o.MaxBodyBytes = n } }
func WithCORS(origins ...string) Option {
	return func(o *Options) { o.CORS.AllowedOrigins = origins }
}

// CORSOptions holds simple CORS settings.
type CORSOptions struct {
	AllowedOrigins []string
}

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

var (
	errBodyTooLarge       = errors.New("body too large")
	errUnsupportedContent = errors.New("unsupported Content-Type")
)

// New creates a handler compiling with whatever compiler p currently holds.
func New(p compiler.Provider, opts ...Option) *Handler {
	var op Options
	for _, f := range opts {
		f(&op)
	}
	return &Handler{provider: p, opt: op}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, rid := reqid.WithID(r.Context(), r.Header.Get(reqid.Header))
	r = r.WithContext(ctx)
	w.Header().Set(reqid.Header, rid)

	route := r.URL.Path
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, Route: route})
	defer func() {
		eventbus.Publish(ctx, events.HTTPFinish{
			Request:  r,
			Route:    route,
			Status:   sw.status,
			Bytes:    sw.bytes,
			Duration: time.Since(start),
		})
	}()

	if r.Method == http.MethodOptions {
		if len(h.opt.CORS.AllowedOrigins) > 0 {
			setCORSHeaders(sw, r, h.opt.CORS)
		}
		sw.WriteHeader(http.StatusNoContent)
		return
	}
	if len(h.opt.CORS.AllowedOrigins) > 0 {
		setCORSHeaders(sw, r, h.opt.CORS)
	}

	switch route {
	case "/compile":
		h.serveCompile(ctx, sw, r, false)
	case "/explain":
		h.serveCompile(ctx, sw, r, true)
	case "/index":
		if r.Method != http.MethodGet {
			h.writeError(sw, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h.writeJSON(sw, http.StatusOK, h.provider.Load().Index())
	case "/schema":
		if r.Method != http.MethodGet {
			h.writeError(sw, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		sw.Header().Set("Content-Type", "text/plain; charset=utf-8")
		sw.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(sw, schema.Render(h.provider.Load().Schema()))
	case "/healthz":
		h.writeJSON(sw, http.StatusOK, map[string]string{"status": "ok"})
	default:
		h.writeError(sw, http.StatusNotFound, "not found")
	}
}

func (h *Handler) serveCompile(ctx context.Context, w http.ResponseWriter, r *http.Request, explain bool) {
	if r.Method != http.MethodPost && (explain || r.Method != http.MethodGet) {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var (
		req   compiler.Request
		batch []compiler.Request
		err   error
	)
	if r.Method == http.MethodGet {
		req = parseQuery(r)
	} else {
		req, batch, err = parseBody(r, h.opt.MaxBodyBytes)
	}
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, errBodyTooLarge):
			status = http.StatusRequestEntityTooLarge
		case errors.Is(err, errUnsupportedContent):
			status = http.StatusUnsupportedMediaType
		}
		h.writeError(w, status, err.Error())
		return
	}

	c := h.provider.Load()
	run := func(req compiler.Request) any {
		if explain {
			return c.Explain(ctx, req)
		}
		return c.Compile(ctx, req)
	}

	var out any
	if batch != nil {
		results := make([]any, len(batch))
		for i := range batch {
			results[i] = run(batch[i])
		}
		out = results
	} else {
		out = run(req)
	}

	if acceptsMsgpack(r.Header.Get("Accept")) {
		writeMsgpack(w, http.StatusOK, out)
		return
	}
	h.writeJSON(w, http.StatusOK, out)
}

// ------------------ Request parsing ------------------

// parseQuery reads the GET form. List parameters may repeat or use commas:
// ?populate=posts,profile&select=id&sort=name:desc&emptyRoot=leaveEmpty
func parseQuery(r *http.Request) compiler.Request {
	q := r.URL.Query()
	req := compiler.Request{
		Populate:                splitList(q["populate"]),
		SelectableFields:        splitList(q["select"]),
		IncludeKey:              q.Get("includeKey"),
		SelectKey:               q.Get("selectKey"),
		SortKey:                 q.Get("sortKey"),
		EmptyRootFieldsBehavior: q.Get("emptyRoot"),
	}
	if v := q.Get("emptyRootFieldsBehavior"); v != "" {
		req.EmptyRootFieldsBehavior = v
	}
	for _, s := range splitList(q["sort"]) {
		req.Sort = append(req.Sort, populate.ParseSort(s))
	}
	return req
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func parseBody(r *http.Request, maxBody int64) (compiler.Request, []compiler.Request, error) {
	defer r.Body.Close()

	mediaType := contentTypeJSON
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			return compiler.Request{}, nil, errUnsupportedContent
		}
		mediaType = mt
	}
	if mediaType != contentTypeJSON && !isMsgpack(mediaType) {
		return compiler.Request{}, nil, errUnsupportedContent
	}

	reader := io.Reader(r.Body)
	if maxBody > 0 {
		reader = io.LimitReader(r.Body, maxBody+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return compiler.Request{}, nil, errors.New("failed to read body")
	}
	if maxBody > 0 && int64(len(body)) > maxBody {
		return compiler.Request{}, nil, errBodyTooLarge
	}

	if isMsgpack(mediaType) {
		return decodeMsgpack(body)
	}

	body = bytes.TrimSpace(body)
	if len(body) > 0 && body[0] == '[' {
		var arr []compiler.Request
		if err := json.Unmarshal(body, &arr); err != nil {
			return compiler.Request{}, nil, errors.New("invalid JSON")
		}
		if len(arr) == 0 {
			return compiler.Request{}, nil, errors.New("empty batch")
		}
		return compiler.Request{}, arr, nil
	}
	var req compiler.Request
	if err := json.Unmarshal(body, &req); err != nil {
		return compiler.Request{}, nil, errors.New("invalid JSON")
	}
	return req, nil, nil
}

func decodeMsgpack(body []byte) (compiler.Request, []compiler.Request, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(body))
	dec.SetCustomStructTag("json")
	if len(body) > 0 && isMsgpackArray(body[0]) {
		var arr []compiler.Request
		if err := dec.Decode(&arr); err != nil {
			return compiler.Request{}, nil, errors.New("invalid msgpack")
		}
		if len(arr) == 0 {
			return compiler.Request{}, nil, errors.New("empty batch")
		}
		return compiler.Request{}, arr, nil
	}
	var req compiler.Request
	if err := dec.Decode(&req); err != nil {
		return compiler.Request{}, nil, errors.New("invalid msgpack")
	}
	return req, nil, nil
}

// isMsgpackArray reports whether c starts a fixarray, array16 or array32.
func isMsgpackArray(c byte) bool {
	return c&0xf0 == 0x90 || c == 0xdc || c == 0xdd
}

func isMsgpack(mediaType string) bool {
	return mediaType == contentTypeMsgpack || mediaType == "application/x-msgpack"
}

func acceptsMsgpack(accept string) bool {
	for _, p := range strings.Split(accept, ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(p))
		if err == nil && isMsgpack(mt) {
			return true
		}
	}
	return false
}

// ------------------ Response formatting ------------------

type errorBody struct {
	Error string `json:"error"`
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, errorBody{Error: msg})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	if h.opt.Pretty {
		enc.SetIndent("", "  ")
	}
	_ = enc.Encode(v)
}

func writeMsgpack(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentTypeMsgpack)
	w.WriteHeader(status)
	enc := msgpack.NewEncoder(w)
	enc.SetCustomStructTag("json")
	_ = enc.Encode(v)
}

type statusWriter struct {
	http.ResponseWriter
	status      int
	bytes       int
	wroteHeader bool
}

func (w *statusWriter) WriteHeader(status int) {
	if w.wroteHeader {
		return
	}
	w.status = status
	w.wroteHeader = true
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func setCORSHeaders(w http.ResponseWriter, r *http.Request, opts CORSOptions) {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return
	}
	wildcard := slices.Contains(opts.AllowedOrigins, "*")
	if !wildcard && !slices.Contains(opts.AllowedOrigins, origin) {
		return
	}
	if wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Expose-Headers", reqid.Header)
	if r.Method == http.MethodOptions {
		if hdr := r.Header.Get("Access-Control-Request-Headers"); hdr != "" {
			w.Header().Set("Access-Control-Allow-Headers", hdr)
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
	}
}
