package sandbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScreen_AllowsCleanScript(t *testing.T) {
	_, _, ok := Screen(`response.write("hello")`)
	assert.True(t, ok)
}

func TestScreen_RejectsEval(t *testing.T) {
	kind, _, ok := Screen(`eval("1+1")`)
	assert.False(t, ok)
	assert.Equal(t, ErrorForbiddenAccess, kind)
}

func TestScreen_RejectsFunctionConstructor(t *testing.T) {
	_, _, ok := Screen(`new Function("return 1")()`)
	assert.False(t, ok)
}

func TestScreen_RejectsEscapeObfuscation(t *testing.T) {
	_, _, ok := Screen(`var x = "\x65\x76\x61\x6c"`)
	assert.False(t, ok)
}

func TestScreen_AllowsOccasionalEscape(t *testing.T) {
	_, _, ok := Screen(`var tab = "\x09"`)
	assert.True(t, ok)
}
