package application

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"testing"

	"tryon-gateway/vton/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func solid(w, h int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: 200, G: 80, B: 40, A: 255})
		}
	}
	return img
}

// fataler cobre *testing.T e *rapid.T
type fataler interface {
	Fatalf(format string, args ...any)
}

func pngBytes(t fataler, w, h int) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solid(w, h)); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t fataler, w, h int) []byte {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, solid(w, h), nil); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}
	return buf.Bytes()
}

func requireKind(t *testing.T, err error, kind domain.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "err: %v", err)
}

func TestValidator_AcceptsPNGAndJPEG(t *testing.T) {
	v := Validator{MaxDimension: 64}

	got, err := v.Validate(domain.UploadedImage{Field: "person_image", DeclaredType: "image/png", Data: pngBytes(t, 30, 40)})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, got.Format)
	assert.Equal(t, 30, got.Width)
	assert.Equal(t, 40, got.Height)

	got, err = v.Validate(domain.UploadedImage{Field: "garment_image", DeclaredType: "image/jpeg", Data: jpegBytes(t, 64, 10)})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatJPEG, got.Format)
}

func TestValidator_InferredFormatWinsOverDeclared(t *testing.T) {
	got, err := Validator{}.Validate(domain.UploadedImage{Field: "person_image", DeclaredType: "image/jpeg", Data: pngBytes(t, 4, 4)})
	require.NoError(t, err)
	assert.Equal(t, domain.FormatPNG, got.Format)
}

func TestValidator_DeclaredTypeIgnoresCaseAndParams(t *testing.T) {
	for _, declared := range []string{"IMAGE/PNG", "image/png; name=me.png", "image/jpg"} {
		_, err := Validator{}.Validate(domain.UploadedImage{Field: "person_image", DeclaredType: declared, Data: pngBytes(t, 4, 4)})
		assert.NoError(t, err, declared)
	}
}

func TestValidator_EmptyDeclaredTypeIsSniffed(t *testing.T) {
	_, err := Validator{}.Validate(domain.UploadedImage{Field: "person_image", Data: jpegBytes(t, 4, 4)})
	require.NoError(t, err)
}

func TestValidator_Rejections(t *testing.T) {
	var gifBuf bytes.Buffer
	require.NoError(t, gif.Encode(&gifBuf, solid(4, 4), nil))

	full := pngBytes(t, 32, 32)

	cases := []struct {
		name string
		img  domain.UploadedImage
		msg  string
	}{
		{"empty", domain.UploadedImage{Field: "person_image"}, "Person image is empty."},
		{"declared text", domain.UploadedImage{Field: "garment_image", DeclaredType: "text/plain", Data: full}, "Garment image must be JPEG or PNG."},
		{"declared image wildcard", domain.UploadedImage{Field: "garment_image", DeclaredType: "image/*", Data: full}, "Garment image must be JPEG or PNG."},
		{"declared any", domain.UploadedImage{Field: "person_image", DeclaredType: "*/*", Data: full}, "Person image must be JPEG or PNG."},
		{"gif", domain.UploadedImage{Field: "garment_image", Data: gifBuf.Bytes()}, "Garment image must be JPEG or PNG."},
		{"garbage", domain.UploadedImage{Field: "person_image", Data: []byte("definitely not an image")}, "Person image must be JPEG or PNG."},
		{"truncated", domain.UploadedImage{Field: "person_image", Data: full[:len(full)-20]}, "Person image is corrupted."},
		{"too wide", domain.UploadedImage{Field: "person_image", Data: pngBytes(t, 65, 10)}, "Person image is 65x10; the larger side must be at most 64 pixels."},
	}

	v := Validator{MaxDimension: 64}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := v.Validate(tc.img)
			requireKind(t, err, domain.KindInvalidImage)

			var e *domain.Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tc.msg, e.Message)
		})
	}
}

func TestValidator_MaxBytes(t *testing.T) {
	data := pngBytes(t, 8, 8)
	_, err := Validator{MaxBytes: int64(len(data) - 1)}.Validate(domain.UploadedImage{Field: "person_image", Data: data})
	requireKind(t, err, domain.KindInvalidImage)
}

func TestValidator_UndecodableBytesAreAlwaysInvalid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(t, "data")
		if _, _, err := image.Decode(bytes.NewReader(data)); err == nil {
			return
		}

		_, err := Validator{}.Validate(domain.UploadedImage{Field: "person_image", Data: data})
		if domain.KindOf(err) != domain.KindInvalidImage {
			t.Fatalf("expected invalid_image, got %v", err)
		}
	})
}

func TestValidator_RejectsExactlyWhenLargerSideExceedsMax(t *testing.T) {
	const maxDim = 24
	rapid.Check(t, func(t *rapid.T) {
		w := rapid.IntRange(1, 40).Draw(t, "w")
		h := rapid.IntRange(1, 40).Draw(t, "h")

		_, err := Validator{MaxDimension: maxDim}.Validate(domain.UploadedImage{Field: "person_image", Data: pngBytes(t, w, h)})
		if max(w, h) > maxDim {
			if domain.KindOf(err) != domain.KindInvalidImage {
				t.Fatalf("%dx%d: expected invalid_image, got %v", w, h, err)
			}
			return
		}
		if err != nil {
			t.Fatalf("%dx%d: unexpected error %v", w, h, err)
		}
	})
}
