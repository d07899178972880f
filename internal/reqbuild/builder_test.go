package reqbuild

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsevilla87/mb/internal/config"
)

func immutableTmpl() *config.Immutable {
	return &config.Immutable{
		Index:  3,
		Host:   "example.com",
		Scheme: "http",
		Method: "GET",
		Path:   "/widgets",
		Port:   80,
		Headers: []config.HeaderPair{
			{Name: "X-Test", Value: "1"},
			{Name: "X-Test", Value: "2"}, // duplicates are allowed and sent as-is
		},
	}
}

func TestBuild_FieldOrderAndHostDefaultPort(t *testing.T) {
	tmpl := immutableTmpl()
	body := config.BodySpec{Type: "content", Content: "hello"}

	built, err := Build(tmpl, body, 0, "")
	require.NoError(t, err)

	keep := string(built.KeepAlive)
	require.True(t, strings.HasPrefix(keep, "GET /widgets HTTP/1.1\r\n"))

	hostIdx := strings.Index(keep, "Host: example.com\r\n")
	uaIdx := strings.Index(keep, "User-Agent: "+UserAgent+"\r\n")
	acceptIdx := strings.Index(keep, "Accept: */*\r\n")
	x1 := strings.Index(keep, "X-Test: 1\r\n")
	x2 := strings.Index(keep, "X-Test: 2\r\n")
	clIdx := strings.Index(keep, "Content-Length: 5\r\n")

	require.True(t, hostIdx >= 0 && uaIdx > hostIdx && acceptIdx > uaIdx &&
		x1 > acceptIdx && x2 > x1 && clIdx > x2, "headers must appear in spec order: %q", keep)

	// default port 80 on http is omitted from Host per spec §4.2
	assert.False(t, strings.Contains(keep, "example.com:80"))
	assert.True(t, strings.HasSuffix(keep, "\r\n\r\nhello"))
}

func TestBuild_NonDefaultPortInHost(t *testing.T) {
	tmpl := immutableTmpl()
	tmpl.Port = 8080
	built, err := Build(tmpl, config.BodySpec{Type: "content"}, 0, "")
	require.NoError(t, err)
	assert.Contains(t, string(built.KeepAlive), "Host: example.com:8080\r\n")
}

func TestBuild_CloseBufferCarriesConnectionClose(t *testing.T) {
	tmpl := immutableTmpl()
	built, err := Build(tmpl, config.BodySpec{Type: "content"}, 0, "")
	require.NoError(t, err)

	assert.NotContains(t, string(built.KeepAlive), "Connection:")
	assert.Contains(t, string(built.Close), "Connection: close\r\n")

	// both buffers agree up to the Connection: header (spec §4.2)
	prefixLen := len(built.KeepAlive) - len("\r\n")
	assert.Equal(t, string(built.KeepAlive[:prefixLen]), string(built.Close[:prefixLen]))
}

func TestBuild_CookieHeaderEchoedWhenCaptured(t *testing.T) {
	tmpl := immutableTmpl()
	built, err := Build(tmpl, config.BodySpec{Type: "content"}, 0, "sid=abc123")
	require.NoError(t, err)
	assert.Contains(t, string(built.KeepAlive), "Cookie: sid=abc123\r\n")
}

func TestBuild_BuiltRetainsBodySpecForRebuild(t *testing.T) {
	tmpl := immutableTmpl()
	body := config.BodySpec{Type: "content", Content: "original payload"}
	built, err := Build(tmpl, body, 0, "")
	require.NoError(t, err)
	assert.Equal(t, body, built.Body)

	// a later rebuild carrying a captured cookie must reproduce the
	// same literal body, not an empty one (spec §4.2/§4.3).
	rebuilt, err := Build(tmpl, built.Body, 0, "sid=abc123")
	require.NoError(t, err)
	assert.Contains(t, string(rebuilt.KeepAlive), "Content-Length: 16\r\n")
	assert.True(t, strings.HasSuffix(string(rebuilt.KeepAlive), "original payload"))
}

func TestBuild_RandomBodySendsChunkedHeaderOnly(t *testing.T) {
	tmpl := immutableTmpl()
	built, err := Build(tmpl, config.BodySpec{Type: "random", Size: 1024}, 0, "")
	require.NoError(t, err)

	assert.Contains(t, string(built.KeepAlive), "Transfer-Encoding: chunked\r\n")
	assert.NotContains(t, string(built.KeepAlive), "Content-Length:")
	require.NotNil(t, built.RandomBody)
	assert.EqualValues(t, 1024, built.RandomBody.TotalSize)
}

func TestBuild_RandomBodyBufferCappedAtMaxReqLen(t *testing.T) {
	tmpl := immutableTmpl()
	built, err := Build(tmpl, config.BodySpec{Type: "random", Size: MaxReqLen + 100}, 0, "")
	require.NoError(t, err)
	assert.LessOrEqual(t, len(built.RandomBody.Buf), MaxReqLen)
	assert.EqualValues(t, MaxReqLen+100, built.RandomBody.TotalSize)
}

func TestBuild_DistinctSiblingsProduceDistinctPayloads(t *testing.T) {
	tmpl := immutableTmpl()
	a, err := Build(tmpl, config.BodySpec{Type: "random", Size: 64}, 0, "")
	require.NoError(t, err)
	b, err := Build(tmpl, config.BodySpec{Type: "random", Size: 64}, 1, "")
	require.NoError(t, err)

	assert.NotEqual(t, a.RandomBody.Buf[:16], b.RandomBody.Buf[:16])
}

func TestBuild_DistinctTemplatesProduceDistinctPayloads(t *testing.T) {
	tmplA := immutableTmpl()
	tmplB := immutableTmpl()
	tmplB.Index = 9

	a, err := Build(tmplA, config.BodySpec{Type: "random", Size: 64}, 0, "")
	require.NoError(t, err)
	b, err := Build(tmplB, config.BodySpec{Type: "random", Size: 64}, 0, "")
	require.NoError(t, err)

	assert.NotEqual(t, a.RandomBody.Buf[:16], b.RandomBody.Buf[:16])
}

func TestBuild_DeterministicGivenSameInputs(t *testing.T) {
	tmpl := immutableTmpl()
	a, err := Build(tmpl, config.BodySpec{Type: "random", Size: 256}, 2, "")
	require.NoError(t, err)
	b, err := Build(tmpl, config.BodySpec{Type: "random", Size: 256}, 2, "")
	require.NoError(t, err)
	assert.Equal(t, a.RandomBody.Buf, b.RandomBody.Buf)
	assert.Equal(t, a.KeepAlive, b.KeepAlive)
}

func TestCyclicBody_WrapsAroundBufferEnd(t *testing.T) {
	rb := &RandomBody{Buf: []byte("abcdef"), TotalSize: 6}
	frame := CyclicBody(rb, 4, 4) // offset 4, want 4 bytes but only 2 remain
	assert.Equal(t, []byte("ef"), frame)
}

func TestCyclicBody_ContiguousSlice(t *testing.T) {
	rb := &RandomBody{Buf: []byte("abcdef"), TotalSize: 6}
	frame := CyclicBody(rb, 1, 3)
	assert.Equal(t, []byte("bcd"), frame)
}
