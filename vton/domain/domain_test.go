package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadedImage_Label(t *testing.T) {
	assert.Equal(t, "Person image", UploadedImage{Field: "person_image"}.Label())
	assert.Equal(t, "Garment image", UploadedImage{Field: "garment_image"}.Label())
	assert.Equal(t, "Image", UploadedImage{}.Label())
}

func TestKindOf(t *testing.T) {
	cause := errors.New("dial tcp: timeout")
	wrapped := fmt.Errorf("submit: %w", UpstreamUnavailable("provider unreachable", cause))

	assert.Equal(t, KindUpstreamUnavailable, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, cause)
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestTryOnResult_Ext(t *testing.T) {
	assert.Equal(t, "png", TryOnResult{ContentType: "image/png"}.Ext())
	assert.Equal(t, "jpeg", TryOnResult{ContentType: "image/jpeg"}.Ext())
	assert.Equal(t, "bin", TryOnResult{ContentType: "text/plain"}.Ext())
}
