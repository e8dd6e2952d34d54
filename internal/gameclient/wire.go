// ABOUTME: Low-level wire helpers for the Java protocol: varints, length-prefixed
// ABOUTME: strings, and plain-text extraction from JSON chat components.

package gameclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
)

const maxStringLen = 32 * 1024

// writeVarInt encodes v as a protocol varint.
func writeVarInt(buf *bytes.Buffer, v int32) {
	u := uint32(v)
	for {
		b := byte(u & 0x7f)
		u >>= 7
		if u != 0 {
			b |= 0x80
		}
		buf.WriteByte(b)
		if u == 0 {
			return
		}
	}
}

// readVarInt decodes a varint from an in-memory reader.
func readVarInt(r *bytes.Reader) (int32, error) {
	var result uint32
	for shift := 0; shift < 35; shift += 7 {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		result |= uint32(b&0x7f) << shift
		if b&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}

// readVarIntConn decodes a varint byte by byte off the wire.
func readVarIntConn(conn net.Conn) (int32, error) {
	var result uint32
	buf := make([]byte, 1)
	for shift := 0; shift < 35; shift += 7 {
		if _, err := io.ReadFull(conn, buf); err != nil {
			return 0, err
		}
		result |= uint32(buf[0]&0x7f) << shift
		if buf[0]&0x80 == 0 {
			return int32(result), nil
		}
	}
	return 0, fmt.Errorf("varint too long")
}

// writeString writes a varint-length-prefixed UTF-8 string.
func writeString(buf *bytes.Buffer, s string) {
	writeVarInt(buf, int32(len(s)))
	buf.WriteString(s)
}

// readString reads a varint-length-prefixed UTF-8 string.
func readString(r *bytes.Reader) (string, error) {
	n, err := readVarInt(r)
	if err != nil {
		return "", err
	}
	if n < 0 || n > maxStringLen {
		return "", fmt.Errorf("string length %d out of range", n)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

// textComponent is the subset of the chat component format we extract
// plain text from.
type textComponent struct {
	Text      string          `json:"text"`
	Translate string          `json:"translate"`
	Extra     []textComponent `json:"extra"`
	With      []json.RawMessage `json:"with"`
}

// decodeTextComponent flattens a JSON chat component into plain text.
// Non-JSON input is returned as-is; kick reasons on older servers are
// bare strings.
func decodeTextComponent(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return raw
	}

	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal([]byte(trimmed), &s); err == nil {
			return s
		}
		return raw
	}

	if trimmed[0] != '{' && trimmed[0] != '[' {
		return raw
	}

	if trimmed[0] == '[' {
		var parts []textComponent
		if err := json.Unmarshal([]byte(trimmed), &parts); err != nil {
			return raw
		}
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(flattenComponent(p))
		}
		return b.String()
	}

	var comp textComponent
	if err := json.Unmarshal([]byte(trimmed), &comp); err != nil {
		return raw
	}
	out := flattenComponent(comp)
	if out == "" {
		return raw
	}
	return out
}

func flattenComponent(c textComponent) string {
	var b strings.Builder
	b.WriteString(c.Text)
	if c.Text == "" && c.Translate != "" {
		b.WriteString(c.Translate)
	}
	for _, e := range c.Extra {
		b.WriteString(flattenComponent(e))
	}
	return b.String()
}
