// Package config loads and validates the JSON request-template file and
// expands "clients" into sibling connection descriptors.
package config

import "net"

const (
	// MaxClients bounds the "clients" expansion multiplier of a single template.
	MaxClients = 20000

	// MaxReqLen is the largest logical random body size the engine will
	// buffer in full; bodies beyond this cycle the buffered bytes.
	MaxReqLen = 64 * 1024 * 1024
)

// HeaderPair is one user-supplied header line, order preserved.
type HeaderPair struct {
	Name  string
	Value string
}

// BodySpec describes the request body: either a literal string or a
// pseudo-random payload of a given size.
type BodySpec struct {
	Type    string // "content" | "random"
	Content string
	Size    int
}

// TCPKeepAlive mirrors the tcp.keep-alive.* JSON keys.
type TCPKeepAlive struct {
	Enable bool
	Idle   int
	Intvl  int
	Cnt    int
}

// CloseSpec mirrors the close.* JSON keys.
type CloseSpec struct {
	Client        bool
	Linger        bool
	LingerSeconds int
}

// DelaySpec is the inter-request delay jitter window, in milliseconds.
type DelaySpec struct {
	Min int
	Max int
}

// ConnectionTemplate is one element of the request-file JSON array,
// before "clients" expansion.
type ConnectionTemplate struct {
	Host     string
	HostFrom string
	Scheme   string
	Port     int

	Method  string
	Path    string
	Headers []HeaderPair

	Body BodySpec

	TCP   TCPKeepAlive
	Close CloseSpec

	ReqsMax       int
	KeepAliveReqs int
	TLSSessionReuse bool

	Delay   DelaySpec
	RampUp  int // milliseconds
	Clients int

	// Resolved at load time: the interface to bind the outbound socket
	// to, when host_from was given.
	SourceAddr *net.TCPAddr
}

// Immutable holds the fields shared by value across siblings expanded
// from one template: they are never mutated after Load returns, so a
// single instance may be referenced by every sibling connection.
type Immutable struct {
	Index int // index of the owning template in the input array

	Host, Scheme, Method, Path string
	Port                       int
	Headers                    []HeaderPair

	TCP   TCPKeepAlive
	Close CloseSpec

	ReqsMax         int
	KeepAliveReqs   int
	TLSSessionReuse bool

	Delay  DelaySpec
	RampUp int

	SourceAddr *net.TCPAddr
}

// Expanded is one connection after "clients" expansion: the immutable
// template fields plus this sibling's own body spec and duplicate flag.
type Expanded struct {
	Tmpl      *Immutable
	Body      BodySpec
	Sibling   int // 0 for the primary, 1..N-1 for duplicates
	Duplicate bool
}
