package domain

import "strings"

// Format é o formato inferido a partir dos bytes, não do Content-Type declarado.
type Format string

const (
	FormatJPEG Format = "jpeg"
	FormatPNG  Format = "png"
)

func (f Format) ContentType() string {
	switch f {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	default:
		return "application/octet-stream"
	}
}

// UploadedImage vive apenas durante a requisição que a recebeu.
type UploadedImage struct {
	// Field é o campo do formulário (person_image, garment_image).
	Field        string
	Filename     string
	DeclaredType string
	Data         []byte

	// preenchidos pelo Validator
	Format Format
	Width  int
	Height int
}

// Label devolve o nome legível do campo: "person_image" -> "Person image".
func (img UploadedImage) Label() string {
	if img.Field == "" {
		return "Image"
	}
	label := strings.ReplaceAll(img.Field, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}

// TryOnResult é a imagem composta devolvida pelo provedor, sem alterações.
type TryOnResult struct {
	Data        []byte
	ContentType string
}

// Ext é a extensão usada no nome de arquivo sugerido ao cliente.
func (r TryOnResult) Ext() string {
	switch r.ContentType {
	case "image/jpeg":
		return "jpeg"
	case "image/png":
		return "png"
	case "image/webp":
		return "webp"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}
