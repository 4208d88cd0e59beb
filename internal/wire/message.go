// Package wire defines the JSON messages sent to the local executor.
//
// Every message carries a protocol version and a single type tag per payload
// kind. Earlier clients used "execute", "execCode" and "execute code"
// interchangeably for plain execution; version 1 settles on "execute".
package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/readmeplay/internal/markup"
)

// Version is the protocol version stamped on every message.
const Version = 1

// Message types.
const (
	TypeExecute = "execute"
	TypeInsert  = "insertCode"
	TypePing    = "ping"
)

// Message is one frame on the executor channel. On the wire each type
// carries exactly its own keys, empty strings included.
type Message struct {
	V            int    `json:"v"`
	Type         string `json:"type"`
	Content      string `json:"content,omitempty"`
	Code         string `json:"code,omitempty"`
	File         string `json:"file,omitempty"`
	SearchString string `json:"searchString,omitempty"`
}

type executeFrame struct {
	V       int    `json:"v"`
	Type    string `json:"type"`
	Content string `json:"content"`
}

type insertFrame struct {
	V            int    `json:"v"`
	Type         string `json:"type"`
	Code         string `json:"code"`
	File         string `json:"file"`
	SearchString string `json:"searchString"`
}

type pingFrame struct {
	V    int    `json:"v"`
	Type string `json:"type"`
}

// messageFields drops the MarshalJSON method so unknown types encode
// field by field.
type messageFields Message

// MarshalJSON implements json.Marshaler.
func (m Message) MarshalJSON() ([]byte, error) {
	var frame any
	switch m.Type {
	case TypeExecute:
		frame = executeFrame{V: m.V, Type: m.Type, Content: m.Content}
	case TypeInsert:
		frame = insertFrame{V: m.V, Type: m.Type, Code: m.Code, File: m.File, SearchString: m.SearchString}
	case TypePing:
		frame = pingFrame{V: m.V, Type: m.Type}
	default:
		frame = messageFields(m)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(frame); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Execute builds an execute message.
func Execute(code string) Message {
	return Message{V: Version, Type: TypeExecute, Content: code}
}

// Insert builds an insertCode message.
func Insert(code, file, searchString string) Message {
	return Message{V: Version, Type: TypeInsert, Code: code, File: file, SearchString: searchString}
}

// Ping is the keepalive message. The executor ignores it.
func Ping() Message {
	return Message{V: Version, Type: TypePing}
}

// FromPayload maps a command payload to its wire message.
func FromPayload(p markup.Payload) (Message, error) {
	switch p := p.(type) {
	case markup.Execute:
		return Execute(p.Code), nil
	case markup.Insert:
		return Insert(p.Code, p.FilePath, p.SearchAnchor), nil
	case nil:
		return Message{}, fmt.Errorf("wire: nil payload")
	default:
		return Message{}, fmt.Errorf("wire: unsupported payload %T", p)
	}
}

// Marshal serializes m.
func (m Message) Marshal() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s message: %w", m.Type, err)
	}
	return data, nil
}

// Unmarshal parses a frame produced by Marshal.
func Unmarshal(data []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return Message{}, fmt.Errorf("unmarshal message: %w", err)
	}
	return m, nil
}
