package domain

import "context"

// Provider é o serviço externo de try-on, tratado como caixa-preta.
//
// TryOn devolve exatamente um resultado ou um *Error classificado
// (UpstreamRejected / UpstreamUnavailable); nunca resultado parcial.
type Provider interface {
	TryOn(ctx context.Context, person, garment UploadedImage) (TryOnResult, error)
}
