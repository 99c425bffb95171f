// Package protocol defines the websocket messages exchanged between the
// server-side device bridge and a handheld agent.
//
// The server sends requests (locate, scan) carrying an ID; the agent answers
// with a result (location, scan_result) or an error under the same ID.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType identifies the type of websocket message.
type MessageType string

const (
	// Agent → server
	TypeHello      MessageType = "hello"       // capability announcement
	TypeLocation   MessageType = "location"    // answer to locate
	TypeScanResult MessageType = "scan_result" // answer to scan
	TypeError      MessageType = "error"       // failed request

	// Server → agent
	TypeLocate MessageType = "locate" // acquire one fix
	TypeScan   MessageType = "scan"   // take one photo

	// Bidirectional
	TypePing MessageType = "ping"
	TypePong MessageType = "pong"
)

// Message is the wrapper for every websocket message.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id,omitempty"` // request correlation
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a message stamped with the current time.
func NewMessage(msgType MessageType, data any) (*Message, error) {
	var raw json.RawMessage
	if data != nil {
		var err error
		raw, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}
	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      raw,
	}, nil
}

// WithID sets the correlation ID and returns m.
func (m *Message) WithID(id string) *Message {
	m.ID = id
	return m
}

// ParseData unmarshals the payload into v. An empty payload leaves v alone.
func (m *Message) ParseData(v any) error {
	if len(m.Data) == 0 {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON encoding.
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage decodes a message and rejects ones without a type.
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// Capabilities advertises what an agent can do.
type Capabilities struct {
	Location bool `json:"location"`
	Scanner  bool `json:"scanner"`
}

// HelloData is the first message an agent sends.
type HelloData struct {
	DeviceID     string       `json:"device_id"`
	Platform     string       `json:"platform,omitempty"`
	Capabilities Capabilities `json:"capabilities"`
}

// LocateRequest asks for one fix.
type LocateRequest struct {
	HighAccuracy bool `json:"high_accuracy"`
}

// LocationData is a fix.
type LocationData struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"` // meters
}

// ScanRequest asks for one photo.
type ScanRequest struct {
	ImageSource      string `json:"image_source"`
	ReturnImageBytes bool   `json:"return_image_bytes"`
}

// ScanImage is one returned image.
type ScanImage struct {
	MIMEType string `json:"mime_type,omitempty"`
	Data     string `json:"data"` // base64
}

// ScanResultData holds every image the scanner returned.
type ScanResultData struct {
	Images []ScanImage `json:"images"`
}

// ErrorData reports a failed request.
type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes understood by the bridge.
const (
	CodePermissionDenied = "permission_denied"
	CodeUnavailable      = "unavailable"
	CodeUnsupported      = "unsupported"
)

// PingData is sent with ping and echoed in pong.
type PingData struct {
	SentAt int64 `json:"sent_at"`
}

// PongData answers a ping.
type PongData struct {
	PingTS int64 `json:"ping_ts"`
	PongTS int64 `json:"pong_ts"`
}

// Getters for typed payloads.

func (m *Message) GetHelloData() (*HelloData, error) {
	var d HelloData
	return &d, m.ParseData(&d)
}

func (m *Message) GetLocateRequest() (*LocateRequest, error) {
	var d LocateRequest
	return &d, m.ParseData(&d)
}

func (m *Message) GetLocationData() (*LocationData, error) {
	var d LocationData
	return &d, m.ParseData(&d)
}

func (m *Message) GetScanRequest() (*ScanRequest, error) {
	var d ScanRequest
	return &d, m.ParseData(&d)
}

func (m *Message) GetScanResultData() (*ScanResultData, error) {
	var d ScanResultData
	return &d, m.ParseData(&d)
}

func (m *Message) GetErrorData() (*ErrorData, error) {
	var d ErrorData
	return &d, m.ParseData(&d)
}
