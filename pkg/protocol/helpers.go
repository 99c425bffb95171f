package protocol

import (
	"encoding/base64"
	"time"
)

// NewHelloMessage announces a device and its capabilities.
func NewHelloMessage(deviceID, platform string, caps Capabilities) (*Message, error) {
	return NewMessage(TypeHello, HelloData{DeviceID: deviceID, Platform: platform, Capabilities: caps})
}

// NewLocateMessage asks the agent for a fix.
func NewLocateMessage(id string, highAccuracy bool) (*Message, error) {
	msg, err := NewMessage(TypeLocate, LocateRequest{HighAccuracy: highAccuracy})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewLocationMessage answers a locate request.
func NewLocationMessage(id string, lat, lon, accuracy float64) (*Message, error) {
	msg, err := NewMessage(TypeLocation, LocationData{Latitude: lat, Longitude: lon, Accuracy: accuracy})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewScanMessage asks the agent for a photo.
func NewScanMessage(id, source string) (*Message, error) {
	msg, err := NewMessage(TypeScan, ScanRequest{ImageSource: source, ReturnImageBytes: true})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// EncodeImage base64-encodes raw bytes for ScanImage.Data.
func EncodeImage(mimeType string, data []byte) ScanImage {
	return ScanImage{MIMEType: mimeType, Data: base64.StdEncoding.EncodeToString(data)}
}

// Decode returns the raw bytes.
func (s ScanImage) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(s.Data)
}

// NewScanResultMessage answers a scan request.
func NewScanResultMessage(id string, images []ScanImage) (*Message, error) {
	msg, err := NewMessage(TypeScanResult, ScanResultData{Images: images})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewErrorMessage reports a failed request.
func NewErrorMessage(id, code, message string) (*Message, error) {
	msg, err := NewMessage(TypeError, ErrorData{Code: code, Message: message})
	if err != nil {
		return nil, err
	}
	return msg.WithID(id), nil
}

// NewPingMessage creates a health check.
func NewPingMessage() (*Message, error) {
	return NewMessage(TypePing, PingData{SentAt: time.Now().UnixMilli()})
}

// NewPongMessage answers a ping.
func NewPongMessage(pingTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{PingTS: pingTS, PongTS: time.Now().UnixMilli()})
}
