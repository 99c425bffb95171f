package annotate

import (
	"bytes"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"golang.org/x/image/bmp"

	"github.com/teslashibe/go-geostamp/pkg/geo"
)

var sf = geo.Coordinate{Latitude: 37.7749, Longitude: -122.4194}

func solidPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// pngClaiming returns a tiny PNG whose IHDR declares w×h.
func pngClaiming(t *testing.T, w, h uint32) []byte {
	t.Helper()
	raw := solidPNG(t, 1, 1, color.Black)
	// signature(8) length(4) "IHDR"(4) width(4) height(4) ... crc at 29
	binary.BigEndian.PutUint32(raw[16:], w)
	binary.BigEndian.PutUint32(raw[20:], h)
	binary.BigEndian.PutUint32(raw[29:], crc32.ChecksumIEEE(raw[12:29]))
	return raw
}

func newAnnotator(t *testing.T, opts ...Option) *Annotator {
	t.Helper()
	a, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return a
}

func TestOutputSize(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1600, 1200, 800, 600},
		{4032, 3024, 800, 600},
		{1080, 1920, 800, 1422},
		{1000, 333, 800, 266},
		{800, 600, 800, 600},
		{400, 300, 400, 300},
		{10000, 1, 800, 1},
	}
	for _, tt := range tests {
		gotW, gotH := OutputSize(tt.w, tt.h, 800)
		if gotW != tt.wantW || gotH != tt.wantH {
			t.Errorf("OutputSize(%d, %d) = %dx%d, want %dx%d", tt.w, tt.h, gotW, gotH, tt.wantW, tt.wantH)
		}
	}
}

func TestAnnotate(t *testing.T) {
	a := newAnnotator(t)

	t.Run("downscales wide images", func(t *testing.T) {
		img, err := a.Annotate(solidPNG(t, 1600, 1200, color.Black), sf)
		if err != nil {
			t.Fatalf("Annotate() error = %v", err)
		}
		if img.Width != 800 || img.Height != 600 {
			t.Errorf("size = %dx%d, want 800x600", img.Width, img.Height)
		}
		if img.Anchor != image.Pt(780, 580) {
			t.Errorf("Anchor = %v, want (780,580)", img.Anchor)
		}
		if img.Text != "37.7749, -122.4194" {
			t.Errorf("Text = %q", img.Text)
		}

		out, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			t.Fatalf("output is not JPEG: %v", err)
		}
		if b := out.Bounds(); b.Dx() != 800 || b.Dy() != 600 {
			t.Errorf("encoded size = %v", b)
		}
	})

	t.Run("re-annotating keeps the size", func(t *testing.T) {
		first, err := a.Annotate(solidPNG(t, 1600, 1200, color.Black), sf)
		if err != nil {
			t.Fatal(err)
		}
		second, err := a.Annotate(first.Data, sf)
		if err != nil {
			t.Fatalf("Annotate(annotated) error = %v", err)
		}
		if second.Width != 800 || second.Height != 600 {
			t.Errorf("size = %dx%d, want 800x600", second.Width, second.Height)
		}
		if second.Anchor != first.Anchor {
			t.Errorf("Anchor = %v, want %v", second.Anchor, first.Anchor)
		}
	})

	t.Run("keeps small images", func(t *testing.T) {
		img, err := a.Annotate(solidPNG(t, 640, 480, color.Black), sf)
		if err != nil {
			t.Fatalf("Annotate() error = %v", err)
		}
		if img.Width != 640 || img.Height != 480 {
			t.Errorf("size = %dx%d, want 640x480", img.Width, img.Height)
		}
		if img.Anchor != image.Pt(620, 460) {
			t.Errorf("Anchor = %v", img.Anchor)
		}
	})

	t.Run("text sits inside the margin", func(t *testing.T) {
		img, err := a.Annotate(solidPNG(t, 800, 600, color.Black), sf)
		if err != nil {
			t.Fatal(err)
		}
		out, err := jpeg.Decode(bytes.NewReader(img.Data))
		if err != nil {
			t.Fatal(err)
		}

		bright := func(x, y int) bool {
			r, g, b, _ := out.At(x, y).RGBA()
			return r > 0xa000 && g > 0xa000 && b > 0xa000
		}

		var inText, outside int
		for y := 0; y < 600; y++ {
			for x := 0; x < 800; x++ {
				if !bright(x, y) {
					continue
				}
				// JPEG ringing can bleed a pixel or two.
				if x > 783 || y > 583 {
					outside++
				} else if y > 520 && x > 300 {
					inText++
				}
			}
		}
		if inText == 0 {
			t.Error("no text pixels near the bottom-right corner")
		}
		if outside > 0 {
			t.Errorf("%d bright pixels beyond the margin", outside)
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		raw := solidPNG(t, 1200, 900, color.RGBA{0x20, 0x40, 0x60, 0xff})
		first, err := a.Annotate(raw, sf)
		if err != nil {
			t.Fatal(err)
		}
		second, err := a.Annotate(raw, sf)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(first.Data, second.Data) {
			t.Error("same input produced different output")
		}
	})

	t.Run("bmp input", func(t *testing.T) {
		var buf bytes.Buffer
		if err := bmp.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 900, 450))); err != nil {
			t.Fatal(err)
		}
		img, err := a.Annotate(buf.Bytes(), sf)
		if err != nil {
			t.Fatalf("Annotate(bmp) error = %v", err)
		}
		if img.Width != 800 || img.Height != 400 {
			t.Errorf("size = %dx%d, want 800x400", img.Width, img.Height)
		}
	})

	t.Run("undecodable bytes", func(t *testing.T) {
		_, err := a.Annotate([]byte("definitely not an image"), sf)
		if !errors.Is(err, ErrDecode) {
			t.Fatalf("error = %v, want ErrDecode", err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Err == nil {
			t.Errorf("error = %#v, want *DecodeError with cause", err)
		}
	})

	t.Run("oversized header", func(t *testing.T) {
		raw := pngClaiming(t, 50000, 50000)
		_, err := a.Annotate(raw, sf)
		if !errors.Is(err, ErrDecode) || !errors.Is(err, ErrTooLarge) {
			t.Fatalf("error = %v, want ErrDecode wrapping ErrTooLarge", err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Format != "png" {
			t.Errorf("error = %#v, want png DecodeError", err)
		}
	})

	t.Run("truncated jpeg", func(t *testing.T) {
		img, err := a.Annotate(solidPNG(t, 100, 100, color.White), sf)
		if err != nil {
			t.Fatal(err)
		}
		_, err = a.Annotate(img.Data[:len(img.Data)/3], sf)
		if !errors.Is(err, ErrDecode) {
			t.Errorf("error = %v, want ErrDecode", err)
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := a.Annotate(nil, sf); !errors.Is(err, ErrEmptyImage) {
			t.Errorf("error = %v, want ErrEmptyImage", err)
		}
	})
}

func TestReconfigure(t *testing.T) {
	a := newAnnotator(t)

	cfg := a.Config()
	cfg.MaxWidth = 400
	cfg.Margin = 10
	if err := a.Reconfigure(cfg); err != nil {
		t.Fatalf("Reconfigure() error = %v", err)
	}
	img, err := a.Annotate(solidPNG(t, 1600, 1200, color.Black), sf)
	if err != nil {
		t.Fatal(err)
	}
	if img.Width != 400 || img.Height != 300 || img.Anchor != image.Pt(390, 290) {
		t.Errorf("got %dx%d anchor %v", img.Width, img.Height, img.Anchor)
	}

	cfg.Color = "mauve"
	if err := a.Reconfigure(cfg); !errors.Is(err, ErrInvalidColor) {
		t.Errorf("Reconfigure(bad color) = %v, want ErrInvalidColor", err)
	}
	if a.Config().Color != "white" {
		t.Error("failed Reconfigure changed the config")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
		ok   bool
	}{
		{"default", func(*Config) {}, true},
		{"zero width", WithMaxWidth(0), false},
		{"negative margin", WithMargin(-1), false},
		{"zero font", WithFontSize(0), false},
		{"quality too high", WithQuality(101), false},
		{"hex color", WithColor("#ffcc00"), true},
		{"bad color", WithColor("ffcc00"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Apply(tt.opt)
			err := cfg.Validate()
			if (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in   string
		want color.RGBA
		ok   bool
	}{
		{"white", color.RGBA{255, 255, 255, 255}, true},
		{" Yellow ", color.RGBA{255, 255, 0, 255}, true},
		{"#FFCC00", color.RGBA{255, 204, 0, 255}, true},
		{"#0f0", color.RGBA{0, 255, 0, 255}, true},
		{"#12345", color.RGBA{}, false},
		{"#gggggg", color.RGBA{}, false},
		{"", color.RGBA{}, false},
	}
	for _, tt := range tests {
		got, err := ParseColor(tt.in)
		if (err == nil) != tt.ok {
			t.Errorf("ParseColor(%q) error = %v", tt.in, err)
			continue
		}
		if tt.ok && got != tt.want {
			t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestDataURL(t *testing.T) {
	img := &Image{Data: []byte{0xff, 0xd8, 0xff, 0xd9}}
	url := img.DataURL()
	if !strings.HasPrefix(url, "data:image/jpeg;base64,") {
		t.Fatalf("DataURL() = %q", url)
	}
	payload := StripDataURL(url)
	if payload != img.Base64() {
		t.Errorf("StripDataURL() = %q, want %q", payload, img.Base64())
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil || !bytes.Equal(decoded, img.Data) {
		t.Errorf("round trip = %v, %v", decoded, err)
	}
	if got := StripDataURL("bare"); got != "bare" {
		t.Errorf("StripDataURL(bare) = %q", got)
	}
}
