package config

import (
	"context"
	"fmt"
	"net"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// recognized top-level keys, used to reject unknown keys with a
// diagnostic naming the offending path (spec: "Failure modes").
var recognizedKeys = map[string]bool{
	"host": true, "port": true, "host_from": true, "scheme": true,
	"method": true, "path": true, "headers": true, "body": true,
	"tcp": true, "delay": true, "close": true,
	"max-requests": true, "keep-alive-requests": true,
	"tls-session-reuse": true, "clients": true, "ramp-up": true,
}

// Load reads the JSON request file at path, validates every element
// and returns the expanded connection list (primary + duplicate
// siblings for every "clients" multiplier).
func Load(path string, resolver *net.Resolver) ([]*Expanded, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var elements []jsoniter.RawMessage
	if err := json.Unmarshal(raw, &elements); err != nil {
		return nil, fmt.Errorf("config: %s must be a JSON array: %w", path, err)
	}

	var out []*Expanded
	for i, elem := range elements {
		tmpl, err := decodeElement(elem, i)
		if err != nil {
			return nil, err
		}
		if err := validate(tmpl, i); err != nil {
			return nil, err
		}
		if tmpl.HostFrom != "" {
			if err := resolveHostFrom(tmpl, resolver); err != nil {
				return nil, fmt.Errorf("config[%d].host_from: %w", i, err)
			}
		}

		immutable := &Immutable{
			Index: i, Host: tmpl.Host, Scheme: tmpl.Scheme, Method: tmpl.Method,
			Path: tmpl.Path, Port: tmpl.Port, Headers: tmpl.Headers,
			TCP: tmpl.TCP, Close: tmpl.Close, ReqsMax: tmpl.ReqsMax,
			KeepAliveReqs: tmpl.KeepAliveReqs, TLSSessionReuse: tmpl.TLSSessionReuse,
			Delay: tmpl.Delay, RampUp: tmpl.RampUp,
			SourceAddr: tmpl.SourceAddr,
		}

		clients := tmpl.Clients
		if clients < 1 {
			clients = 1
		}
		for sib := 0; sib < clients; sib++ {
			out = append(out, &Expanded{
				Tmpl:      immutable,
				Body:      tmpl.Body,
				Sibling:   sib,
				Duplicate: sib > 0,
			})
		}
	}

	return out, nil
}

func decodeElement(elem jsoniter.RawMessage, idx int) (*ConnectionTemplate, error) {
	var fields map[string]jsoniter.RawMessage
	if err := json.Unmarshal(elem, &fields); err != nil {
		return nil, fmt.Errorf("config[%d]: %w", idx, err)
	}
	for key := range fields {
		if !recognizedKeys[key] {
			return nil, fmt.Errorf("config[%d].%s: unknown key", idx, key)
		}
	}

	tmpl := &ConnectionTemplate{
		Scheme: "http",
		Method: "GET",
		Path:   "/",
	}

	if v, ok := fields["host"]; ok {
		if err := json.Unmarshal(v, &tmpl.Host); err != nil {
			return nil, fmt.Errorf("config[%d].host: %w", idx, err)
		}
	}
	if v, ok := fields["port"]; ok {
		if err := json.Unmarshal(v, &tmpl.Port); err != nil {
			return nil, fmt.Errorf("config[%d].port: %w", idx, err)
		}
	}
	if v, ok := fields["host_from"]; ok {
		if err := json.Unmarshal(v, &tmpl.HostFrom); err != nil {
			return nil, fmt.Errorf("config[%d].host_from: %w", idx, err)
		}
	}
	if v, ok := fields["scheme"]; ok {
		if err := json.Unmarshal(v, &tmpl.Scheme); err != nil {
			return nil, fmt.Errorf("config[%d].scheme: %w", idx, err)
		}
	}
	if v, ok := fields["method"]; ok {
		if err := json.Unmarshal(v, &tmpl.Method); err != nil {
			return nil, fmt.Errorf("config[%d].method: %w", idx, err)
		}
	}
	if v, ok := fields["path"]; ok {
		if err := json.Unmarshal(v, &tmpl.Path); err != nil {
			return nil, fmt.Errorf("config[%d].path: %w", idx, err)
		}
	}
	if v, ok := fields["headers"]; ok {
		hdrs, err := decodeHeaders(v)
		if err != nil {
			return nil, fmt.Errorf("config[%d].headers: %w", idx, err)
		}
		tmpl.Headers = hdrs
	}
	if v, ok := fields["body"]; ok {
		body, err := decodeBody(v, idx)
		if err != nil {
			return nil, err
		}
		tmpl.Body = body
	}
	if v, ok := fields["tcp"]; ok {
		if err := decodeTCP(v, tmpl, idx); err != nil {
			return nil, err
		}
	}
	if v, ok := fields["delay"]; ok {
		if err := json.Unmarshal(v, &tmpl.Delay); err != nil {
			return nil, fmt.Errorf("config[%d].delay: %w", idx, err)
		}
	}
	if v, ok := fields["close"]; ok {
		var c struct {
			Client        bool `json:"client"`
			Linger        bool `json:"linger"`
			LingerSeconds int  `json:"linger-seconds"`
		}
		if err := json.Unmarshal(v, &c); err != nil {
			return nil, fmt.Errorf("config[%d].close: %w", idx, err)
		}
		tmpl.Close.Client = c.Client
		tmpl.Close.Linger = c.Linger
		tmpl.Close.LingerSeconds = c.LingerSeconds
	}
	if v, ok := fields["max-requests"]; ok {
		if err := json.Unmarshal(v, &tmpl.ReqsMax); err != nil {
			return nil, fmt.Errorf("config[%d].max-requests: %w", idx, err)
		}
	}
	if v, ok := fields["keep-alive-requests"]; ok {
		if err := json.Unmarshal(v, &tmpl.KeepAliveReqs); err != nil {
			return nil, fmt.Errorf("config[%d].keep-alive-requests: %w", idx, err)
		}
	}
	if v, ok := fields["tls-session-reuse"]; ok {
		if err := json.Unmarshal(v, &tmpl.TLSSessionReuse); err != nil {
			return nil, fmt.Errorf("config[%d].tls-session-reuse: %w", idx, err)
		}
	}
	if v, ok := fields["clients"]; ok {
		if err := json.Unmarshal(v, &tmpl.Clients); err != nil {
			return nil, fmt.Errorf("config[%d].clients: %w", idx, err)
		}
	}
	if v, ok := fields["ramp-up"]; ok {
		if err := json.Unmarshal(v, &tmpl.RampUp); err != nil {
			return nil, fmt.Errorf("config[%d].ramp-up: %w", idx, err)
		}
	}

	return tmpl, nil
}

// decodeHeaders preserves the input's header order (map iteration in
// encoding/json-compatible Unmarshal does not), reading the object
// through jsoniter's streaming iterator instead.
func decodeHeaders(raw jsoniter.RawMessage) ([]HeaderPair, error) {
	iter := jsoniter.ConfigCompatibleWithStandardLibrary.BorrowIterator(raw)
	defer jsoniter.ConfigCompatibleWithStandardLibrary.ReturnIterator(iter)

	var pairs []HeaderPair
	iter.ReadObjectCB(func(it *jsoniter.Iterator, field string) bool {
		pairs = append(pairs, HeaderPair{Name: field, Value: it.ReadString()})
		return true
	})
	if iter.Error != nil {
		return nil, iter.Error
	}
	return pairs, nil
}

func decodeBody(raw jsoniter.RawMessage, idx int) (BodySpec, error) {
	// Backward compatibility: a bare JSON string means literal content.
	var bare string
	if err := json.Unmarshal(raw, &bare); err == nil {
		logrus.WithField("template", idx).
			Warn("config: bare string \"body\" is deprecated, use {\"type\":\"content\",\"content\":...}")
		return BodySpec{Type: "content", Content: bare}, nil
	}

	var obj struct {
		Content string `json:"content"`
		Size    int    `json:"size"`
		Type    string `json:"type"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return BodySpec{}, fmt.Errorf("config[%d].body: %w", idx, err)
	}
	if obj.Type == "" {
		obj.Type = "content"
	}
	if obj.Type != "content" && obj.Type != "random" {
		return BodySpec{}, fmt.Errorf("config[%d].body.type: must be \"content\" or \"random\"", idx)
	}
	if obj.Type == "random" {
		if obj.Size <= 0 {
			return BodySpec{}, fmt.Errorf("config[%d].body: type=random requires size > 0", idx)
		}
		return BodySpec{Type: "random", Size: obj.Size}, nil
	}
	return BodySpec{Type: "content", Content: obj.Content}, nil
}

func decodeTCP(raw jsoniter.RawMessage, tmpl *ConnectionTemplate, idx int) error {
	var ka struct {
		KeepAlive struct {
			Enable bool `json:"enable"`
			Idle   int  `json:"idle"`
			Intvl  int  `json:"intvl"`
			Cnt    int  `json:"cnt"`
		} `json:"keep-alive"`
	}
	if err := json.Unmarshal(raw, &ka); err != nil {
		return fmt.Errorf("config[%d].tcp: %w", idx, err)
	}
	tmpl.TCP = TCPKeepAlive(ka.KeepAlive)
	return nil
}

func validate(tmpl *ConnectionTemplate, idx int) error {
	if tmpl.Host == "" {
		return fmt.Errorf("config[%d].host: required", idx)
	}
	if tmpl.Port == 0 {
		return fmt.Errorf("config[%d].port: required", idx)
	}
	if tmpl.Scheme != "http" && tmpl.Scheme != "https" {
		return fmt.Errorf("config[%d].scheme: must be \"http\" or \"https\"", idx)
	}
	if tmpl.Clients < 0 || tmpl.Clients > MaxClients {
		return fmt.Errorf("config[%d].clients: must be in [0, %d]", idx, MaxClients)
	}
	if tmpl.Delay.Min > tmpl.Delay.Max {
		return fmt.Errorf("config[%d].delay: min (%d) > max (%d)", idx, tmpl.Delay.Min, tmpl.Delay.Max)
	}
	if tmpl.ReqsMax < 0 {
		return fmt.Errorf("config[%d].max-requests: must be >= 0", idx)
	}
	if tmpl.KeepAliveReqs < 0 {
		return fmt.Errorf("config[%d].keep-alive-requests: must be >= 0", idx)
	}
	return nil
}

// resolveHostFrom resolves host_from (the bind source address, spec
// §3/§4.4) into tmpl.SourceAddr. It never touches tmpl.Host: that field
// names the connection's destination, not the interface to dial from.
func resolveHostFrom(tmpl *ConnectionTemplate, resolver *net.Resolver) error {
	if resolver == nil {
		resolver = net.DefaultResolver
	}
	ips, err := resolver.LookupHost(context.Background(), tmpl.HostFrom)
	if err != nil {
		return err
	}
	if len(ips) == 0 {
		return fmt.Errorf("no addresses for %s", tmpl.HostFrom)
	}
	tmpl.SourceAddr = &net.TCPAddr{IP: net.ParseIP(ips[0])}
	return nil
}
