package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvoke_SimpleResponse(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`response.setStatus(200); response.write("hello " + request.method);`, Request{Method: "GET"}, Session{})
	require.False(t, result.Failed())
	assert.Equal(t, 200, result.Status)
	assert.Equal(t, "hello GET", string(result.Body))
}

func TestInvoke_SyntaxError(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`this is not valid js {{{`, Request{}, Session{})
	assert.Equal(t, ErrorSyntax, result.ErrorKind)
}

func TestInvoke_RuntimeError(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`undefinedFunctionCall();`, Request{}, Session{})
	assert.Equal(t, ErrorRuntime, result.ErrorKind)
}

func TestInvoke_ForbiddenAccessScreened(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`eval("1+1")`, Request{}, Session{})
	assert.Equal(t, ErrorForbiddenAccess, result.ErrorKind)
}

func TestInvoke_WallClockTimeout(t *testing.T) {
	limits := DefaultLimits()
	limits.WallClock = 50 * time.Millisecond
	sb := New(limits, nil)
	result := sb.Invoke(`while (true) {}`, Request{}, Session{})
	assert.Equal(t, ErrorTimeout, result.ErrorKind)
}

func TestInvoke_OutputSizeLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.OutputBytes = 16
	sb := New(limits, nil)
	result := sb.Invoke(`response.write("this string is definitely longer than sixteen bytes");`, Request{}, Session{})
	assert.Equal(t, ErrorLimitExceeded, result.ErrorKind)
}

func TestInvoke_PerStringLimit(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxStringBytes = 4
	sb := New(limits, nil)
	result := sb.Invoke(`session.set("k", "too long a value")`, Request{}, Session{})
	assert.Equal(t, ErrorRuntime, result.ErrorKind)
}

func TestInvoke_SessionRoundTrips(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`session.set("visits", session.get("visits") === "" ? "1" : "2");`, Request{}, Session{Values: map[string]string{}})
	require.False(t, result.Failed())
	assert.Equal(t, "1", result.Session["visits"])
}

func TestInvoke_HostNamespaceAbsent(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	// The name is assembled at run time so the static screen does not
	// reject the script before the runtime namespace is checked.
	result := sb.Invoke(`response.write(typeof this["ev" + "al"]);`, Request{}, Session{})
	require.False(t, result.Failed())
	assert.Equal(t, "undefined", string(result.Body))
}

func TestInvoke_HTMLEscapeHelper(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`response.write(html.escape("<b>hi</b>"));`, Request{}, Session{})
	require.False(t, result.Failed())
	assert.Equal(t, "&lt;b&gt;hi&lt;/b&gt;", string(result.Body))
}

func TestInvoke_JSONHelpers(t *testing.T) {
	sb := New(DefaultLimits(), nil)
	result := sb.Invoke(`var obj = json.parse('{"a":1}'); response.write(json.stringify(obj));`, Request{}, Session{})
	require.False(t, result.Failed())
	assert.Equal(t, `{"a":1}`, string(result.Body))
}
