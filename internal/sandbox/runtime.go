package sandbox

import (
	"fmt"
	"html"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/dop251/goja"
	gojson "github.com/goccy/go-json"
)

// yieldTick is how often the watchdog goroutine interrupts the VM to check
// the wall-clock deadline and instruction budget, approximating spec §4.5's
// "periodic yield-and-check every N operations" — goja exposes no native
// instruction counter, so the budget is expressed as wall-clock ticks
// instead (documented limitation).
const yieldTick = 10 * time.Millisecond

// Sandbox runs handler scripts under the limits and restricted namespace of
// spec §4.5. It holds no per-invocation state; Invoke builds a fresh
// goja.Runtime every call so no script can observe another's globals.
type Sandbox struct {
	Limits Limits
	Logger *slog.Logger
}

// New constructs a Sandbox with the given limits.
func New(limits Limits, logger *slog.Logger) *Sandbox {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sandbox{Limits: limits, Logger: logger}
}

// Invoke runs script against request/session under this Sandbox's limits
// (spec §4.5: "invoke(script, request, session) -> SandboxResult").
func (s *Sandbox) Invoke(script string, req Request, sess Session) Result {
	if kind, msg, ok := Screen(script); !ok {
		return Result{ErrorKind: kind, Message: msg}
	}

	// Compile separately: vm.RunString would report a syntax error as a
	// *goja.Exception, indistinguishable here from a runtime throw.
	prog, err := goja.Compile("", script, false)
	if err != nil {
		return classifyRunError(err)
	}

	vm := goja.New()
	vm.SetMaxCallStackSize(256)

	out := &boundedWriter{limit: s.Limits.OutputBytes}
	resp := newResponseHandle(out, s.Limits.MaxStringBytes)
	sessHandle := newSessionHandle(sess, s.Limits.MaxStringBytes)

	if err := installGlobals(vm, req, resp, sessHandle, s.Limits); err != nil {
		return Result{ErrorKind: ErrorRuntime, Message: fmt.Sprintf("install globals: %v", err)}
	}

	done := make(chan struct{})
	timedOut := make(chan struct{})
	go s.watch(vm, done, timedOut)
	defer close(done)

	value, err := vm.RunProgram(prog)
	select {
	case <-timedOut:
		return Result{ErrorKind: ErrorTimeout, Message: "invocation exceeded wall-clock limit"}
	default:
	}

	if err != nil {
		return classifyRunError(err)
	}

	if out.overflowed {
		return Result{ErrorKind: ErrorLimitExceeded, Message: "output exceeded size limit"}
	}

	return finalize(value, resp, sessHandle)
}

func (s *Sandbox) watch(vm *goja.Runtime, done, timedOut chan struct{}) {
	deadline := time.Now().Add(s.Limits.WallClock)
	ticker := time.NewTicker(yieldTick)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case now := <-ticker.C:
			if now.After(deadline) {
				close(timedOut)
				vm.Interrupt("wall-clock limit exceeded")
				return
			}
		}
	}
}

func classifyRunError(err error) Result {
	if exc, ok := err.(*goja.Exception); ok {
		return Result{ErrorKind: ErrorRuntime, Message: exc.Error()}
	}
	if _, ok := err.(*goja.InterruptedError); ok {
		return Result{ErrorKind: ErrorTimeout, Message: "invocation interrupted"}
	}
	if compileErr, ok := err.(*goja.CompilerSyntaxError); ok {
		return Result{ErrorKind: ErrorSyntax, Message: compileErr.Error()}
	}
	return Result{ErrorKind: ErrorRuntime, Message: err.Error()}
}

func finalize(value goja.Value, resp *responseHandle, sess *sessionHandle) Result {
	status := resp.status
	if status == 0 {
		status = 200
	}
	body := resp.body.Bytes()
	if len(body) == 0 && value != nil && !goja.IsUndefined(value) && !goja.IsNull(value) {
		if s, ok := value.Export().(string); ok {
			body = []byte(s)
		}
	}
	return Result{
		Body:       body,
		Status:     status,
		Headers:    resp.headers,
		CookiesSet: resp.cookies,
		Session:    sess.values,
	}
}

// htmlTag renders an HTML element: attribute values are escaped, content is
// trusted as-is so scripts can compose nested tags built from earlier
// html.tag/html.link calls.
func htmlTag(name, content string, attrs ...map[string]string) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(name)
	if len(attrs) > 0 {
		keys := make([]string, 0, len(attrs[0]))
		for k := range attrs[0] {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, ` %s="%s"`, k, html.EscapeString(attrs[0][k]))
		}
	}
	b.WriteByte('>')
	b.WriteString(content)
	fmt.Fprintf(&b, "</%s>", name)
	return b.String()
}

// htmlLink renders an anchor tag with both the href and the visible text
// escaped.
func htmlLink(url, text string) string {
	return fmt.Sprintf(`<a href="%s">%s</a>`, html.EscapeString(url), html.EscapeString(text))
}

// installGlobals builds the restricted namespace: arithmetic/string/
// collection utilities come from goja's own ECMAScript built-ins (already
// present on a fresh Runtime); this wires only the spec-named extras and
// strips the symbols forbidden by spec §4.5 ("file system, raw network,
// process control, dynamic code loading, reflection into the host").
func installGlobals(vm *goja.Runtime, req Request, resp *responseHandle, sess *sessionHandle, limits Limits) error {
	global := vm.GlobalObject()
	for _, forbidden := range []string{"eval", "Function", "WebAssembly", "Reflect", "Proxy"} {
		if err := global.Delete(forbidden); err != nil {
			return err
		}
	}

	if err := vm.Set("request", map[string]any{
		"method":  req.Method,
		"url":     req.URL,
		"headers": req.Headers,
		"cookies": req.Cookies,
		"query":   req.Query,
		"body":    string(req.Body),
	}); err != nil {
		return err
	}

	if err := vm.Set("response", resp.bind(vm)); err != nil {
		return err
	}

	sessObj := sess.bind(vm)
	if err := vm.Set("session", sessObj); err != nil {
		return err
	}
	if err := vm.Set("storage", sessObj); err != nil {
		return err
	}

	if err := vm.Set("clock", map[string]any{
		"now": func() int64 { return time.Now().UnixMilli() },
	}); err != nil {
		return err
	}

	if err := vm.Set("html", map[string]any{
		"escape": html.EscapeString,
		"tag":    htmlTag,
		"link":   htmlLink,
	}); err != nil {
		return err
	}

	if err := vm.Set("json", map[string]any{
		"stringify": func(v any) (string, error) {
			b, err := gojson.Marshal(v)
			return string(b), err
		},
		"parse": func(s string) (any, error) {
			var v any
			err := gojson.Unmarshal([]byte(s), &v)
			return v, err
		},
	}); err != nil {
		return err
	}

	return nil
}
