// Package router implements the HTTP-like request dispatcher of spec §4.6:
// DNS-gated request acceptance, document-root lookup, static streaming, and
// sandboxed dynamic handler invocation.
package router

import (
	"net/url"
	"strings"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/sandbox"
	"github.com/rednetexplorer/core/internal/transport"
)

const sessionCookieName = "rdnt_session"

// nameBlocker is implemented by guard.Guard to extend the base
// transport.NetworkGuard interface with a target-name check; CheckRequest
// alone has no name argument since it is shared with the raw transport
// adapter, which never decodes one.
type nameBlocker interface {
	BlockedName(name string) bool
}

// Router dispatches incoming request envelopes against locally registered
// sites (spec §4.6).
type Router struct {
	Local    *names.LocalRegistry
	Codec    *busproto.Codec
	Sites    map[string]DocumentRoot // keyed by registered name
	Sandbox  *sandbox.Sandbox
	Sessions *SessionManager
	Guard    transport.NetworkGuard
}

// New constructs a Router with spec-reasonable defaults.
func New(local *names.LocalRegistry, codec *busproto.Codec, sb *sandbox.Sandbox) *Router {
	return &Router{
		Local:    local,
		Codec:    codec,
		Sites:    make(map[string]DocumentRoot),
		Sandbox:  sb,
		Sessions: NewSessionManager(0),
		Guard:    transport.AllowAllGuard{},
	}
}

// Mount registers a DocumentRoot for a locally registered name.
func (r *Router) Mount(name string, root DocumentRoot) {
	r.Sites[name] = root
}

// Dispatch handles one inbound request envelope, applying the network
// guard before the six-step dispatch (spec §4.6: "Rate limiting and
// moderation hooks run before dispatch").
func (r *Router) Dispatch(source int, req busproto.Envelope) (busproto.Envelope, bool) {
	var payload busproto.RequestPayload
	if err := busproto.DecodePayload(req, &payload); err != nil {
		return busproto.Envelope{}, false
	}

	action := r.Guard.CheckRequest(source, len(payload.Body), "request")
	switch action {
	case transport.GuardDrop, transport.GuardBlock:
		return busproto.Envelope{}, false
	case transport.GuardThrottle:
		// Caller (the transport adapter's handler goroutine) is expected to
		// apply ThrottleDelay before invoking Dispatch again; Dispatch itself
		// does not sleep so the router never blocks other sources.
	}

	return r.dispatch(req, payload), true
}

func (r *Router) dispatch(req busproto.Envelope, payload busproto.RequestPayload) busproto.Envelope {
	// Step 1: DNS gate.
	name, err := extractTargetName(payload.URL)
	if err != nil {
		return r.errorResponse(req, busproto.StatusBadRequest, "invalid target name")
	}
	if _, ok := r.Local.Lookup(name); !ok {
		return r.errorResponse(req, busproto.StatusNotFound, "no such local site")
	}
	if blocker, ok := r.Guard.(nameBlocker); ok && blocker.BlockedName(name) {
		return r.errorResponse(req, busproto.StatusForbidden, "name blocked")
	}
	root, ok := r.Sites[name]
	if !ok {
		return r.errorResponse(req, busproto.StatusNotFound, "site not mounted")
	}

	// Step 2: parse path, strip query.
	path, params := splitPath(payload.URL)
	if payload.Headers == nil {
		payload.Headers = map[string]string{}
	}
	for k, v := range params {
		payload.Headers["query."+k] = v
	}

	// Step 3: resolve entry.
	entry := root.Resolve(path)
	switch entry.Kind {
	case EntryNotFound:
		return r.errorResponse(req, busproto.StatusNotFound, "not found")
	case EntryStatic:
		return r.staticResponse(req, entry)
	default:
		return r.dynamicResponse(req, payload, entry, params)
	}
}

func (r *Router) staticResponse(req busproto.Envelope, entry Entry) busproto.Envelope {
	env, err := r.Codec.CreateResponse(req.Source, busproto.StatusOK,
		entry.StaticBody, map[string]string{"content-type": entry.ContentType}, nil, req.ID)
	if err != nil {
		return busproto.Envelope{}
	}
	return env
}

func (r *Router) dynamicResponse(req busproto.Envelope, payload busproto.RequestPayload, entry Entry, params map[string]string) busproto.Envelope {
	sessionID := payload.Cookies[sessionCookieName]
	sess := r.Sessions.Load(sessionID)

	result := r.Sandbox.Invoke(entry.Script, sandbox.Request{
		Method:  payload.Method,
		URL:     payload.URL,
		Headers: payload.Headers,
		Cookies: payload.Cookies,
		Body:    payload.Body,
		Query:   params,
	}, sess)

	if result.Failed() {
		return r.sandboxErrorResponse(req, result)
	}

	r.Sessions.Save(sess.ID, result.Session)

	cookies := result.CookiesSet
	if cookies == nil {
		cookies = map[string]string{}
	}
	cookies[sessionCookieName] = sess.ID

	status := busproto.Status(result.Status)
	if status == 0 {
		status = busproto.StatusOK
	}
	env, err := r.Codec.CreateResponse(req.Source, status, result.Body, result.Headers, cookies, req.ID)
	if err != nil {
		return busproto.Envelope{}
	}
	return env
}

// sandboxErrorResponse implements spec §4.6 step 6's error-kind mapping.
func (r *Router) sandboxErrorResponse(req busproto.Envelope, result sandbox.Result) busproto.Envelope {
	switch result.ErrorKind {
	case sandbox.ErrorTimeout:
		return r.errorResponse(req, busproto.StatusServiceUnavailable, "handler timed out")
	case sandbox.ErrorLimitExceeded:
		return r.errorResponse(req, busproto.StatusServiceUnavailable, "handler exceeded resource limit")
	case sandbox.ErrorForbiddenAccess:
		return r.errorResponse(req, busproto.StatusForbidden, "handler failed static screen")
	case sandbox.ErrorSyntax:
		return r.errorResponse(req, busproto.StatusInternalServerError, "handler syntax error")
	default:
		return r.errorResponse(req, busproto.StatusInternalServerError, "handler runtime error")
	}
}

func (r *Router) errorResponse(req busproto.Envelope, status busproto.Status, reason string) busproto.Envelope {
	env, err := r.Codec.CreateError(req.Source, status, reason, req.ID)
	if err != nil {
		return busproto.Envelope{}
	}
	return env
}

func extractTargetName(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	host := u.Host
	if host == "" {
		host = u.Path
	}
	return strings.ToLower(host), nil
}

func splitPath(rawURL string) (string, map[string]string) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "/", nil
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	params := make(map[string]string)
	for k, v := range u.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return path, params
}
