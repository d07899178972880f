package engine

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// parsedResponse is the subset of a response the engine's decisions
// depend on: status code, whether the body is chunked or has a known
// length (so it can be drained before the next request), whether the
// server asked for the connection to close, and any captured cookies.
type parsedResponse struct {
	status        int
	contentLength int64 // -1 if absent
	chunked       bool
	connClose     bool
	cookies       string // joined with "; " if multiple Set-Cookie lines
	bytesRead     int64  // status line + headers + body, for stats.Read
}

// readResponse parses one HTTP/1.1 response status line and header
// block from r, then drains (and discards) the body so the connection
// is ready for the next request. Grounded on
// shockwave/pkg/shockwave/client/response.go's ParseStatusLine, adapted
// from zero-allocation fixed buffers to a plain bufio.Reader since the
// engine parses one response per goroutine dispatch, not per
// sync.Pool-shared object.
func readResponse(r *bufio.Reader, captureCookies bool) (parsedResponse, error) {
	var resp parsedResponse
	resp.contentLength = -1

	statusLine, err := r.ReadString('\n')
	if err != nil {
		return resp, err
	}
	resp.bytesRead += int64(len(statusLine))
	if err := parseStatusLine(statusLine, &resp); err != nil {
		return resp, err
	}

	var cookies []string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return resp, err
		}
		resp.bytesRead += int64(len(line))
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break // end of header block
		}
		name, value, ok := strings.Cut(trimmed, ":")
		if !ok {
			return resp, ErrParser
		}
		name = strings.ToLower(strings.TrimSpace(name))
		value = strings.TrimSpace(value)

		switch name {
		case "content-length":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return resp, ErrParser
			}
			resp.contentLength = n
		case "transfer-encoding":
			if strings.EqualFold(value, "chunked") {
				resp.chunked = true
			}
		case headerConnectionLower:
			if strings.EqualFold(value, valueCloseLower) {
				resp.connClose = true
			}
		case headerSetCookie:
			if captureCookies {
				cookies = append(cookies, firstCookiePair(value))
			}
		}
	}
	resp.cookies = strings.Join(cookies, "; ")

	n, err := drainBody(r, resp)
	resp.bytesRead += n
	if err != nil {
		return resp, err
	}
	return resp, nil
}

func parseStatusLine(line string, resp *parsedResponse) error {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 || !strings.HasPrefix(parts[0], "HTTP/") {
		return ErrParser
	}
	status, err := strconv.Atoi(parts[1])
	if err != nil {
		return ErrParser
	}
	if status < 100 {
		return ErrShortStatusLine
	}
	resp.status = status
	return nil
}

// firstCookiePair keeps only the "name=value" part of a Set-Cookie
// line, dropping attributes (Path, Expires, ...), matching what a
// client echoes back via the Cookie header.
func firstCookiePair(setCookie string) string {
	pair, _, _ := strings.Cut(setCookie, ";")
	return strings.TrimSpace(pair)
}

// drainBody reads and discards the response body so the connection is
// ready for the next request on the same socket, returning the number
// of bytes consumed (for stats.Read).
func drainBody(r *bufio.Reader, resp parsedResponse) (int64, error) {
	switch {
	case resp.chunked:
		return drainChunked(r)
	case resp.contentLength > 0:
		n, err := io.CopyN(io.Discard, r, resp.contentLength)
		return n, err
	default:
		return 0, nil
	}
}

func drainChunked(r *bufio.Reader) (int64, error) {
	var total int64
	for {
		sizeLine, err := r.ReadString('\n')
		if err != nil {
			return total, err
		}
		total += int64(len(sizeLine))
		trimmed := strings.TrimRight(sizeLine, "\r\n")
		if semi := strings.IndexByte(trimmed, ';'); semi >= 0 {
			trimmed = trimmed[:semi]
		}
		size, err := strconv.ParseInt(strings.TrimSpace(trimmed), 16, 64)
		if err != nil {
			return total, ErrParser
		}
		if size == 0 {
			// Trailer headers, terminated by a blank line.
			for {
				line, err := r.ReadString('\n')
				if err != nil {
					return total, err
				}
				total += int64(len(line))
				if strings.TrimRight(line, "\r\n") == "" {
					return total, nil
				}
			}
		}
		n, err := io.CopyN(io.Discard, r, size)
		total += n
		if err != nil {
			return total, err
		}
		if _, err := r.Discard(2); err != nil { // trailing CRLF
			return total, err
		}
		total += 2
	}
}
