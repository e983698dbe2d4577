package imaging

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(w, h int) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, solid(w, h, color.RGBA{255, 0, 0, 255}), &jpeg.Options{Quality: 90})
	return buf.Bytes()
}

func encodePNG(w, h int) []byte {
	var buf bytes.Buffer
	png.Encode(&buf, solid(w, h, color.RGBA{0, 0, 255, 255}))
	return buf.Bytes()
}

func decodeBounds(t *testing.T, data []byte) image.Rectangle {
	t.Helper()
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decoding result: %v", err)
	}
	return img.Bounds()
}

func TestGarmentPNGBecomesJPEG(t *testing.T) {
	result, err := Garment.Process(bytes.NewReader(encodePNG(100, 100)))
	if err != nil {
		t.Fatalf("Process PNG: %v", err)
	}
	if result.MIME != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", result.MIME)
	}
	if len(result.Data) == 0 {
		t.Error("expected non-empty data")
	}
}

func TestGarmentDownscaleKeepsAspect(t *testing.T) {
	result, err := Garment.Process(bytes.NewReader(encodeJPEG(2048, 1024)))
	if err != nil {
		t.Fatalf("Process large image: %v", err)
	}

	b := decodeBounds(t, result.Data)
	if b.Dx() != 1024 || b.Dy() != 512 {
		t.Errorf("expected 1024x512, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestGarmentSmallImageNotUpscaled(t *testing.T) {
	result, err := Garment.Process(bytes.NewReader(encodeJPEG(50, 40)))
	if err != nil {
		t.Fatalf("Process small image: %v", err)
	}

	b := decodeBounds(t, result.Data)
	if b.Dx() != 50 || b.Dy() != 40 {
		t.Errorf("small image should not be resized: got %dx%d", b.Dx(), b.Dy())
	}
}

func TestAvatarIsSquare(t *testing.T) {
	result, err := Avatar.Process(bytes.NewReader(encodeJPEG(600, 400)))
	if err != nil {
		t.Fatalf("Process avatar: %v", err)
	}

	b := decodeBounds(t, result.Data)
	if b.Dx() != 256 || b.Dy() != 256 {
		t.Errorf("expected 256x256, got %dx%d", b.Dx(), b.Dy())
	}
}

func TestRejectsUnsupported(t *testing.T) {
	for name, data := range map[string][]byte{
		"text": []byte("not an image"),
		"gif":  []byte("GIF89a..."),
	} {
		_, err := Garment.Process(bytes.NewReader(data))
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("%s: expected ErrUnsupported, got %v", name, err)
		}
	}
}

func TestRejectsOversized(t *testing.T) {
	data := make([]byte, MaxUploadSize+10)
	copy(data, encodeJPEG(10, 10))
	if _, err := Garment.Process(bytes.NewReader(data)); err == nil {
		t.Error("expected error for oversized upload")
	}
}
