package application

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"tryon-gateway/vton/domain"

	"github.com/aohorodnyk/mimeheader"
)

// subtipos de image/ aceitos no tipo declarado; o formato real vem dos bytes.
// Curingas (image/*, */*) não valem.
var acceptedDeclaredSubtypes = []string{"jpeg", "jpg", "png"}

// Validator confere se os bytes enviados são uma imagem JPEG/PNG de verdade,
// dentro dos limites configurados. Não faz I/O.
type Validator struct {
	// MaxDimension limita o maior lado em pixels (0 = sem limite).
	MaxDimension int
	// MaxBytes limita o tamanho do arquivo (0 = sem limite).
	MaxBytes int64
}

func (v Validator) Validate(img domain.UploadedImage) (domain.UploadedImage, error) {
	label := img.Label()

	if len(img.Data) == 0 {
		return img, domain.InvalidImage(label+" is empty.", nil)
	}
	if v.MaxBytes > 0 && int64(len(img.Data)) > v.MaxBytes {
		return img, domain.InvalidImage(fmt.Sprintf("%s exceeds %d bytes.", label, v.MaxBytes), nil)
	}
	if err := checkDeclaredType(img.DeclaredType); err != nil {
		return img, domain.InvalidImage(label+" must be JPEG or PNG.", err)
	}

	cfg, name, err := image.DecodeConfig(bytes.NewReader(img.Data))
	if errors.Is(err, image.ErrFormat) {
		return img, domain.InvalidImage(label+" must be JPEG or PNG.", err)
	}
	if err != nil {
		return img, domain.InvalidImage(label+" is not a valid image.", err)
	}

	format := domain.Format(name)
	if format != domain.FormatJPEG && format != domain.FormatPNG {
		return img, domain.InvalidImage(label+" must be JPEG or PNG.", fmt.Errorf("decoded format %q", name))
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return img, domain.InvalidImage(label+" has no pixels.", nil)
	}
	if v.MaxDimension > 0 && max(cfg.Width, cfg.Height) > v.MaxDimension {
		return img, domain.InvalidImage(fmt.Sprintf("%s is %dx%d; the larger side must be at most %d pixels.",
			label, cfg.Width, cfg.Height, v.MaxDimension), nil)
	}

	// decodificação completa só depois do limite de dimensão (bombas de descompressão)
	if _, _, err := image.Decode(bytes.NewReader(img.Data)); err != nil {
		return img, domain.InvalidImage(label+" is corrupted.", err)
	}

	img.Format = format
	img.Width = cfg.Width
	img.Height = cfg.Height
	return img, nil
}

func checkDeclaredType(declared string) error {
	if strings.TrimSpace(declared) == "" {
		return nil
	}
	mt, err := mimeheader.ParseMediaType(declared)
	if err != nil {
		return fmt.Errorf("content type %q: %w", declared, err)
	}
	if strings.EqualFold(mt.Type, "image") {
		for _, sub := range acceptedDeclaredSubtypes {
			if strings.EqualFold(mt.Subtype, sub) {
				return nil
			}
		}
	}
	return fmt.Errorf("content type %q not accepted", declared)
}
