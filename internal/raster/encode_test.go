package raster

import (
	"bytes"
	"image"
	"image/png"
	"io"
	"strings"
	"testing"

	"crt-renderer/internal/arena"

	"github.com/ftrvxmtrx/tga"
	"golang.org/x/image/webp"
)

func testFrame(t *testing.T) *image.NRGBA {
	t.Helper()
	a := arena.New(make([]byte, 1<<12))
	fb, err := NewFrameBuffer(a, 3, 2)
	if err != nil {
		t.Fatal(err)
	}
	fb.Pix()[0] = Pixel{R: 255, G: 0, B: 0}
	fb.Pix()[4] = Pixel{R: 10, G: 20, B: 30} // (1, 1)
	return fb.NRGBA()
}

// All three binary formats are lossless here, so an encoded frame must
// decode back with the same dimensions and exact pixel values.
func TestEncodeDecodesBack(t *testing.T) {
	img := testFrame(t)
	cases := []struct {
		format string
		decode func(io.Reader) (image.Image, error)
	}{
		{"png", png.Decode},
		{"webp", webp.Decode},
		{"tga", tga.Decode},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		if err := Encode(&buf, tc.format, img); err != nil {
			t.Fatalf("%s: Encode failed: %v", tc.format, err)
		}
		dec, err := tc.decode(&buf)
		if err != nil {
			t.Fatalf("%s: decoding the encoded frame failed: %v", tc.format, err)
		}
		if b := dec.Bounds(); b.Dx() != 3 || b.Dy() != 2 {
			t.Errorf("%s: decoded bounds = %v, want 3x2", tc.format, b)
			continue
		}
		r, g, b, _ := dec.At(1, 1).RGBA()
		if r>>8 != 10 || g>>8 != 20 || b>>8 != 30 {
			t.Errorf("%s: pixel (1,1) = (%d,%d,%d), want (10,20,30)",
				tc.format, r>>8, g>>8, b>>8)
		}
	}
}

func TestEncodePPMDispatch(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, "ppm", testFrame(t)); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "P3\n3 2\n255\n") {
		t.Errorf("ppm output starts with %q", buf.String()[:12])
	}
}

func TestEncodeUnknownFormat(t *testing.T) {
	if err := Encode(io.Discard, "gif", testFrame(t)); err == nil {
		t.Error("unknown format did not fail")
	}
}
