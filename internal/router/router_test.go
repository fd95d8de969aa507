package router

import (
	"path/filepath"
	"testing"

	"github.com/rednetexplorer/core/internal/busproto"
	"github.com/rednetexplorer/core/internal/guard"
	"github.com/rednetexplorer/core/internal/names"
	"github.com/rednetexplorer/core/internal/names/store"
	"github.com/rednetexplorer/core/internal/sandbox"
	"github.com/rednetexplorer/core/internal/transport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T, nodeID int) (*Router, *busproto.Codec) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "names.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	local, err := names.NewLocalRegistry(nodeID, db, nil)
	require.NoError(t, err)

	codec := busproto.NewCodec(nodeID, busproto.StaticSecret{Key: []byte("k")})
	sb := sandbox.New(sandbox.DefaultLimits(), nil)
	r := New(local, codec, sb)
	return r, codec
}

func makeRequest(codec *busproto.Codec, source int, method, rawURL string, cookies map[string]string) busproto.Envelope {
	env, _ := codec.Encode(busproto.TypeRequest, busproto.RequestPayload{
		Method:  method,
		URL:     rawURL,
		Cookies: cookies,
	}, nil)
	env.Source = source
	return env
}

func TestDispatch_UnregisteredName_Returns404(t *testing.T) {
	r, codec := newTestRouter(t, 1)
	req := makeRequest(codec, 2, "GET", "rdnt://nosuchsite/", nil)

	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)
	var p busproto.ErrorPayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusNotFound, p.Status)
}

func TestDispatch_StaticFile(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)

	root := NewMapRoot()
	root.Files["/index.html"] = []byte("<h1>hi</h1>")
	r.Mount("shop.comp1234.rednet", root)

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/index.html", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)

	var p busproto.ResponsePayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusOK, p.Status)
	assert.Equal(t, "<h1>hi</h1>", string(p.Body))
	assert.Equal(t, "text/html", p.Headers["content-type"])
}

func TestDispatch_DirectoryIndex(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)

	root := NewMapRoot()
	root.Files["/index.rwml"] = []byte(`response.write("home");`)
	r.Mount("shop.comp1234.rednet", root)

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)

	var p busproto.ResponsePayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusOK, p.Status)
	assert.Equal(t, "home", string(p.Body))
}

func TestDispatch_MissingPath_Returns404(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)
	r.Mount("shop.comp1234.rednet", NewMapRoot())

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/missing.html", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)

	var p busproto.ErrorPayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusNotFound, p.Status)
}

func TestDispatch_DynamicHandler_SessionCookieIssued(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)

	root := NewMapRoot()
	root.Files["/counter.rwml"] = []byte(`
		var n = session.get("n");
		n = n === "" ? "1" : String(parseInt(n) + 1);
		session.set("n", n);
		response.write(n);
	`)
	r.Mount("shop.comp1234.rednet", root)

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/counter.rwml", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)

	var p busproto.ResponsePayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, "1", string(p.Body))
	require.NotEmpty(t, p.CookiesSet[sessionCookieName])

	sessionID := p.CookiesSet[sessionCookieName]
	req2 := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/counter.rwml", map[string]string{sessionCookieName: sessionID})
	resp2, ok := r.Dispatch(2, req2)
	require.True(t, ok)
	var p2 busproto.ResponsePayload
	require.NoError(t, busproto.DecodePayload(resp2, &p2))
	assert.Equal(t, "2", string(p2.Body))
}

func TestDispatch_SandboxTimeout_Returns503(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	r.Sandbox.Limits.WallClock = 20000000 // 20ms in nanoseconds
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)

	root := NewMapRoot()
	root.Files["/slow.rwml"] = []byte(`while (true) {}`)
	r.Mount("shop.comp1234.rednet", root)

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/slow.rwml", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)

	var p busproto.ErrorPayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusServiceUnavailable, p.Status)
}

func TestDispatch_GuardBlocksSilently(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	r.Guard = blockAllGuard{}
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)
	r.Mount("shop.comp1234.rednet", NewMapRoot())

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/", nil)
	_, ok := r.Dispatch(2, req)
	assert.False(t, ok)
}

func TestDispatch_GuardBlocksByName(t *testing.T) {
	r, codec := newTestRouter(t, 1234)
	g := guard.New(guard.DefaultConfig())
	g.BlockedNames.Add("shop.comp1234.rednet", false)
	r.Guard = g
	_, err := r.Local.Register("shop.comp1234.rednet", 0)
	require.NoError(t, err)
	r.Mount("shop.comp1234.rednet", NewMapRoot())

	req := makeRequest(codec, 2, "GET", "rdnt://shop.comp1234.rednet/", nil)
	resp, ok := r.Dispatch(2, req)
	require.True(t, ok)
	var p busproto.ErrorPayload
	require.NoError(t, busproto.DecodePayload(resp, &p))
	assert.Equal(t, busproto.StatusForbidden, p.Status)
}

type blockAllGuard struct{}

func (blockAllGuard) CheckRequest(source, size int, class string) transport.GuardAction {
	return transport.GuardBlock
}

func (blockAllGuard) ThrottleDelay(source int) int { return 0 }
