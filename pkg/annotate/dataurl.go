package annotate

import (
	"encoding/base64"
	"strings"
)

// MIMEType is the encoding of every annotated image.
const MIMEType = "image/jpeg"

// DataURL renders the image as data:image/jpeg;base64,<payload>.
func (img *Image) DataURL() string {
	return "data:" + MIMEType + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
}

// Base64 returns the bare base64 payload.
func (img *Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}

// StripDataURL returns everything after the first comma of a data URL. A
// string without a comma is returned unchanged.
func StripDataURL(s string) string {
	if _, payload, ok := strings.Cut(s, ","); ok {
		return payload
	}
	return s
}
