package protocol

import (
	"bytes"
	"testing"
)

func TestNewMessage(t *testing.T) {
	tests := []struct {
		name    string
		msgType MessageType
		data    any
	}{
		{"hello", TypeHello, HelloData{DeviceID: "phone-1", Capabilities: Capabilities{Location: true}}},
		{"locate", TypeLocate, LocateRequest{HighAccuracy: true}},
		{"nil data", TypePing, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(tt.msgType, tt.data)
			if err != nil {
				t.Fatalf("NewMessage() error = %v", err)
			}
			if msg.Type != tt.msgType {
				t.Errorf("type = %v, want %v", msg.Type, tt.msgType)
			}
			if msg.Timestamp == 0 {
				t.Error("timestamp not set")
			}
			if tt.data == nil && msg.Data != nil {
				t.Errorf("Data = %s, want nil", msg.Data)
			}
		})
	}
}

func TestScanResultRoundTrip(t *testing.T) {
	img := []byte{0xff, 0xd8, 0xff, 0xd9}
	msg, err := NewScanResultMessage("req-1", []ScanImage{EncodeImage("image/jpeg", img)})
	if err != nil {
		t.Fatal(err)
	}
	data, err := msg.Bytes()
	if err != nil {
		t.Fatal(err)
	}

	parsed, err := ParseMessage(data)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	if parsed.Type != TypeScanResult || parsed.ID != "req-1" {
		t.Errorf("parsed = %+v", parsed)
	}
	res, err := parsed.GetScanResultData()
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Images) != 1 {
		t.Fatalf("images = %d", len(res.Images))
	}
	got, err := res.Images[0].Decode()
	if err != nil || !bytes.Equal(got, img) {
		t.Errorf("Decode() = %x, %v", got, err)
	}
}

func TestErrorMessage(t *testing.T) {
	msg, _ := NewErrorMessage("req-2", CodePermissionDenied, "User denied Geolocation")
	d, err := msg.GetErrorData()
	if err != nil {
		t.Fatal(err)
	}
	if msg.ID != "req-2" || d.Code != CodePermissionDenied || d.Message != "User denied Geolocation" {
		t.Errorf("got id=%s %+v", msg.ID, d)
	}
}

func TestParseMessageErrors(t *testing.T) {
	for _, in := range []string{"", "not json", `{"id":"x"}`} {
		if _, err := ParseMessage([]byte(in)); err == nil {
			t.Errorf("ParseMessage(%q) succeeded", in)
		}
	}
}
