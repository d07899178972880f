package reqbuild

// Pre-compiled wire fragments, mirroring the teacher's zero-allocation
// constant tables (client/constants_shared.go) but trimmed to what a
// request builder that runs once per template actually needs.
var (
	spaceBytes = []byte(" ")
	crlfBytes  = []byte("\r\n")
	colonSP    = []byte(": ")

	http11Bytes = []byte("HTTP/1.1")

	headerHost             = "Host"
	headerUserAgent        = "User-Agent"
	headerAccept           = "Accept"
	headerConnection       = "Connection"
	headerContentLength    = "Content-Length"
	headerTransferEncoding = "Transfer-Encoding"
	headerCookie           = "Cookie"

	valueClose   = "close"
	valueChunked = "chunked"
	valueAcceptAny = "*/*"
)

// UserAgent is the default User-Agent value, naming this program and
// its version per spec §4.2.
const UserAgent = "mb/2.0"

// MaxReqLen bounds the logical random-body size the engine buffers in
// full; larger bodies cycle the buffered bytes (spec §4.2).
const MaxReqLen = 64 * 1024 * 1024

// ChunkOverhead is the worst-case per-frame framing cost ("FFFFFFFF\r\n"
// + trailing "\r\n") subtracted from DefaultSendBuffer when sizing
// chunked write frames (internal/engine.chunkFrameSize).
const ChunkOverhead = 16

// DefaultSendBuffer mirrors a typical kernel SO_SNDBUF default; the
// engine uses it to size chunk frames when the socket's actual buffer
// size is not queried.
const DefaultSendBuffer = 16 * 1024
