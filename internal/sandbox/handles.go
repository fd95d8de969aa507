package sandbox

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// Session storage limits, spec §3/§6: each value is capped at 1KB and the
// session's total stored size at 16KB.
const (
	maxSessionValueBytes = 1024
	maxSessionTotalBytes = 16 * 1024
)

// boundedWriter enforces spec §4.5's 100KB output-size limit across every
// write a handler script performs via response.write.
type boundedWriter struct {
	buf        bytes.Buffer
	limit      int
	overflowed bool
}

func (w *boundedWriter) Write(p []byte) (int, error) {
	if w.buf.Len()+len(p) > w.limit {
		w.overflowed = true
		remaining := w.limit - w.buf.Len()
		if remaining > 0 {
			w.buf.Write(p[:remaining])
		}
		return len(p), nil
	}
	return w.buf.Write(p)
}

func (w *boundedWriter) Bytes() []byte { return w.buf.Bytes() }

// responseHandle backs the script-visible `response` object.
type responseHandle struct {
	out            *boundedWriter
	maxStringBytes int

	status  int
	headers map[string]string
	cookies map[string]string
	body    *boundedWriter
}

func newResponseHandle(out *boundedWriter, maxStringBytes int) *responseHandle {
	return &responseHandle{
		out:            out,
		maxStringBytes: maxStringBytes,
		headers:        make(map[string]string),
		cookies:        make(map[string]string),
		body:           out,
	}
}

func (r *responseHandle) checkStringLimit(s string) error {
	if len(s) > r.maxStringBytes {
		return fmt.Errorf("string of %d bytes exceeds per-string limit of %d bytes", len(s), r.maxStringBytes)
	}
	return nil
}

// bind exposes this handle's methods to the VM as a plain JS object, per
// spec §4.5's request/response/session/storage handle namespace.
func (r *responseHandle) bind(vm *goja.Runtime) map[string]any {
	return map[string]any{
		"write": func(s string) error {
			if err := r.checkStringLimit(s); err != nil {
				panic(vm.NewGoError(err))
			}
			_, err := r.body.Write([]byte(s))
			return err
		},
		"print": func(parts ...any) error {
			s := joinPrintArgs(parts)
			if err := r.checkStringLimit(s); err != nil {
				panic(vm.NewGoError(err))
			}
			_, err := r.body.Write([]byte(s))
			return err
		},
		"setStatus": func(code int) { r.status = code },
		"setHeader": func(key, value string) error {
			if err := r.checkStringLimit(value); err != nil {
				return err
			}
			r.headers[key] = value
			return nil
		},
		"setCookie": func(key, value string) error {
			if err := r.checkStringLimit(value); err != nil {
				return err
			}
			r.cookies[key] = value
			return nil
		},
		"redirect": func(url string) error {
			if err := r.checkStringLimit(url); err != nil {
				return err
			}
			r.status = 302
			r.headers["Location"] = url
			return nil
		},
	}
}

// joinPrintArgs renders response.print's variadic arguments the way
// console.log would: space-separated, numbers and booleans stringified.
func joinPrintArgs(parts []any) string {
	strs := make([]string, len(parts))
	for i, p := range parts {
		strs[i] = fmt.Sprint(p)
	}
	return strings.Join(strs, " ")
}

// sessionHandle backs the script-visible `session` (and, aliased, `storage`)
// object: a flat string/string map scoped to the caller's session, mutated
// only in the script's own copy (spec I4).
type sessionHandle struct {
	maxStringBytes int
	values         map[string]string
}

func newSessionHandle(sess Session, maxStringBytes int) *sessionHandle {
	values := make(map[string]string, len(sess.Values))
	for k, v := range sess.Values {
		values[k] = v
	}
	return &sessionHandle{maxStringBytes: maxStringBytes, values: values}
}

// totalBytes sums the stored size of every entry (key+value), used to
// enforce the 16KB per-session cap.
func (s *sessionHandle) totalBytes() int {
	total := 0
	for k, v := range s.values {
		total += len(k) + len(v)
	}
	return total
}

func (s *sessionHandle) bind(vm *goja.Runtime) map[string]any {
	return map[string]any{
		"get": func(key string) string { return s.values[key] },
		"set": func(key, value string) error {
			if len(value) > s.maxStringBytes {
				return fmt.Errorf("session value of %d bytes exceeds per-string limit of %d bytes", len(value), s.maxStringBytes)
			}
			if len(value) > maxSessionValueBytes {
				return fmt.Errorf("session value of %d bytes exceeds per-entry limit of %d bytes", len(value), maxSessionValueBytes)
			}
			existing := len(key) + len(s.values[key])
			added := len(key) + len(value)
			if s.totalBytes()-existing+added > maxSessionTotalBytes {
				return fmt.Errorf("session total size would exceed %d byte limit", maxSessionTotalBytes)
			}
			s.values[key] = value
			return nil
		},
		"delete": func(key string) { delete(s.values, key) },
	}
}
