package engine

import (
	"fmt"
	"io"

	"github.com/rsevilla87/mb/internal/reqbuild"
)

// chunkFrameSize bounds a single chunk's payload to a typical kernel
// send-buffer size minus the worst-case framing overhead, so one
// chunk's wire bytes fit in one underlying socket write.
const chunkFrameSize = reqbuild.DefaultSendBuffer - reqbuild.ChunkOverhead

var crlf = []byte("\r\n")

// writeChunkedBody streams rb's logical body (which may be far larger
// than rb.Buf, per spec §4.2's MAX_REQ_LEN cycling) as HTTP/1.1
// chunks, framing each one with its hex length and a terminating
// zero-length chunk. The sum of emitted chunk-data lengths always
// equals rb.TotalSize (spec §4.2 invariant).
func writeChunkedBody(w io.Writer, rb *reqbuild.RandomBody) (int64, error) {
	var written int64
	var offset int64

	for written < rb.TotalSize {
		remaining := rb.TotalSize - written
		n := remaining
		if n > int64(chunkFrameSize) {
			n = int64(chunkFrameSize)
		}
		frame := reqbuild.CyclicBody(rb, offset, int(n))
		if len(frame) == 0 {
			break
		}

		if _, err := fmt.Fprintf(w, "%x\r\n", len(frame)); err != nil {
			return written, err
		}
		if _, err := w.Write(frame); err != nil {
			return written, err
		}
		if _, err := w.Write(crlf); err != nil {
			return written, err
		}

		written += int64(len(frame))
		offset += int64(len(frame))
	}

	if _, err := w.Write([]byte("0\r\n\r\n")); err != nil {
		return written, err
	}
	return written, nil
}
