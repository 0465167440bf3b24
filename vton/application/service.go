package application

import (
	"context"
	"time"

	rldomain "tryon-gateway/middleware/ratelimit/domain"
	"tryon-gateway/vton/domain"

	"github.com/rs/zerolog"
)

// Admission é a decisão de rate limit (ver middleware/ratelimit/application.Service).
type Admission interface {
	Decide(ctx context.Context, key rldomain.Key) rldomain.Decision
}

// Outcome carrega, além do resultado, a decisão de admissão (para headers),
// quando ela chegou a ser tomada.
type Outcome struct {
	Result   domain.TryOnResult
	Decision rldomain.Decision
	Decided  bool
	Elapsed  time.Duration
}

// Service orquestra validação -> admissão -> provedor, nesta ordem: checagens
// locais e baratas primeiro, então requisição inválida ou barrada nunca chega à rede.
type Service struct {
	Validator Validator
	Admission Admission
	Provider  domain.Provider
	Logger    zerolog.Logger
}

func (s *Service) TryOn(ctx context.Context, clientKey string, person, garment domain.UploadedImage) (Outcome, error) {
	var out Outcome

	person, err := s.Validator.Validate(person)
	if err != nil {
		return out, err
	}
	garment, err = s.Validator.Validate(garment)
	if err != nil {
		return out, err
	}

	if s.Admission != nil {
		out.Decision = s.Admission.Decide(ctx, rldomain.Key(clientKey))
		out.Decided = true
		if !out.Decision.Allowed {
			return out, domain.RateLimited(out.Decision.RetryAfter)
		}
	}

	s.Logger.Debug().
		Str("person_format", string(person.Format)).
		Int("person_width", person.Width).
		Int("person_height", person.Height).
		Str("garment_format", string(garment.Format)).
		Int("garment_width", garment.Width).
		Int("garment_height", garment.Height).
		Msg("images validated, calling provider")

	start := time.Now()
	res, err := s.Provider.TryOn(ctx, person, garment)
	out.Elapsed = time.Since(start)
	if err != nil {
		return out, err
	}

	out.Result = res
	return out, nil
}
