package sandbox

import (
	"regexp"
	"strings"
)

// blockedIdentifiers are symbols that would, if reachable, defeat the
// runtime's restricted namespace (spec §4.5: "screened for blocked-symbol
// references"). Of these, installGlobals also deletes eval, Function,
// Reflect, Proxy and WebAssembly from each runtime; the others are not
// removed at run time.
var blockedIdentifiers = []string{
	"eval", "Function", "importScripts", "require", "process",
	"globalThis", "Reflect", "Proxy", "WebAssembly", "__proto__",
}

// escapeObfuscationPattern flags scripts that lean heavily on byte-escape
// sequences to hide references from a naive string scan.
var escapeObfuscationPattern = regexp.MustCompile(`(\\x[0-9a-fA-F]{2}){4,}|(\\u[0-9a-fA-F]{4}){4,}`)

// Screen runs the static pre-check of spec §4.5: a source scan for blocked
// identifiers and obfuscation patterns, which Invoke performs before every
// execution. Failing it yields ErrorForbiddenAccess without attempting
// execution.
func Screen(source string) (ErrorKind, string, bool) {
	for _, id := range blockedIdentifiers {
		if strings.Contains(source, id) {
			return ErrorForbiddenAccess, "script references blocked identifier: " + id, false
		}
	}
	if escapeObfuscationPattern.MatchString(source) {
		return ErrorForbiddenAccess, "script contains suspicious escape-sequence density", false
	}
	return "", "", true
}
