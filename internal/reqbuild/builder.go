package reqbuild

import (
	"fmt"
	"strconv"

	"github.com/valyala/bytebufferpool"

	"github.com/rsevilla87/mb/internal/config"
)

// RandomBody is a pre-filled, deterministic pseudo-random payload
// streamed as a chunked body at write time. buf may be shorter than
// TotalSize (capped at config.MaxReqLen): the engine reuses it
// cyclically, per spec §4.2.
type RandomBody struct {
	Buf       []byte
	TotalSize int64
}

// Built holds the two pre-serialized request buffers for a single
// connection: one assuming another request will follow
// (Connection: keep-alive, the HTTP/1.1 default, so the header is
// simply omitted) and one for the final request of a TCP connection
// (Connection: close).
type Built struct {
	KeepAlive []byte
	Close     []byte

	RandomBody *RandomBody

	// Body is the spec the buffers above were built from, kept so a
	// later rebuild (e.g. once a captured cookie needs echoing) can
	// reproduce the same literal content instead of an empty body.
	Body config.BodySpec
}

// Build assembles the two request buffers for one expanded connection.
// cookies, when non-empty, is echoed as a Cookie header — request
// building is otherwise a pure function of tmpl, body and siblingIndex,
// the last of which seeds the random body (spec §8 "Request building is
// deterministic").
func Build(tmpl *config.Immutable, body config.BodySpec, siblingIndex int, cookies string) (*Built, error) {
	b := &Built{Body: body}

	if body.Type == "random" {
		total := int64(body.Size)
		bufLen := total
		if bufLen > MaxReqLen {
			bufLen = MaxReqLen
		}
		buf := make([]byte, bufLen)
		newMCG(tmpl.Index, siblingIndex).fill(buf)
		b.RandomBody = &RandomBody{Buf: buf, TotalSize: total}
	}

	keep := bytebufferpool.Get()
	defer bytebufferpool.Put(keep)
	closeBuf := bytebufferpool.Get()
	defer bytebufferpool.Put(closeBuf)

	if err := writeRequest(keep, tmpl, body, cookies, false); err != nil {
		return nil, fmt.Errorf("reqbuild: %w", err)
	}
	if err := writeRequest(closeBuf, tmpl, body, cookies, true); err != nil {
		return nil, fmt.Errorf("reqbuild: %w", err)
	}

	b.KeepAlive = append([]byte(nil), keep.B...)
	b.Close = append([]byte(nil), closeBuf.B...)
	return b, nil
}

// writeRequest assembles one request into buf in this order: request
// line, Host, User-Agent, Accept, user headers in input order, Cookie
// (if captured), the body framing header (Content-Length for a literal
// body, Transfer-Encoding: chunked for a random one), Connection: close
// when close is true, the blank line, and finally the literal body, if
// any. The close buffer's extra header is thus its last header line.
func writeRequest(buf *bytebufferpool.ByteBuffer, tmpl *config.Immutable, body config.BodySpec, cookies string, close bool) error {
	buf.WriteString(tmpl.Method)
	buf.Write(spaceBytes)
	buf.WriteString(tmpl.Path)
	buf.Write(spaceBytes)
	buf.Write(http11Bytes)
	buf.Write(crlfBytes)

	writeHeader(buf, headerHost, hostHeaderValue(tmpl))
	writeHeader(buf, headerUserAgent, UserAgent)
	writeHeader(buf, headerAccept, valueAcceptAny)

	for _, h := range tmpl.Headers {
		writeHeader(buf, h.Name, h.Value)
	}

	if cookies != "" {
		writeHeader(buf, headerCookie, cookies)
	}

	switch body.Type {
	case "random":
		writeHeader(buf, headerTransferEncoding, valueChunked)
	case "content":
		writeHeader(buf, headerContentLength, strconv.Itoa(len(body.Content)))
	}

	if close {
		writeHeader(buf, headerConnection, valueClose)
	}

	buf.Write(crlfBytes)

	if body.Type == "content" {
		buf.WriteString(body.Content)
	}

	return nil
}

func writeHeader(buf *bytebufferpool.ByteBuffer, name, value string) {
	buf.WriteString(name)
	buf.Write(colonSP)
	buf.WriteString(value)
	buf.Write(crlfBytes)
}

func hostHeaderValue(tmpl *config.Immutable) string {
	if (tmpl.Scheme == "http" && tmpl.Port == 80) || (tmpl.Scheme == "https" && tmpl.Port == 443) {
		return tmpl.Host
	}
	return tmpl.Host + ":" + strconv.Itoa(tmpl.Port)
}

// CyclicBody returns the next frame of up to n bytes from a random
// body, wrapping around rb.Buf when the logical body is larger than
// the buffered bytes (spec §4.2, MAX_REQ_LEN cycling).
func CyclicBody(rb *RandomBody, offset int64, n int) []byte {
	if len(rb.Buf) == 0 || n <= 0 {
		return nil
	}
	start := int(offset % int64(len(rb.Buf)))
	if start+n <= len(rb.Buf) {
		return rb.Buf[start : start+n]
	}
	// Wrap: callers only ask for contiguous slices, so fall back to a
	// shorter run up to the buffer's end; the engine issues another
	// frame for the remainder on the next write.
	return rb.Buf[start:]
}
