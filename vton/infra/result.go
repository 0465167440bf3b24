package infra

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"tryon-gateway/vton/domain"

	"github.com/tidwall/gjson"
)

// campos onde o provedor costuma colocar a URL do resultado
var resultURLPaths = []string{"image_url", "url", "result_url", "output.image_url", "data.image_url"}

// campos onde o provedor costuma explicar uma recusa
var messagePaths = []string{"error.message", "message", "error", "detail.0.msg", "detail"}

const maxProviderMessage = 300

// normalize transforma a resposta 2xx do submit em resultado inline ou em URL
// a buscar. Daqui para frente ninguém olha o formato do provedor.
func normalize(rep reply) (domain.TryOnResult, *url.URL, error) {
	mediaType, _, _ := mime.ParseMediaType(rep.contentType)

	if strings.HasPrefix(mediaType, "image/") {
		res, err := asImage(rep.body)
		return res, nil, err
	}

	if !gjson.ValidBytes(rep.body) {
		// sem Content-Type útil, mas pode ser a imagem mesmo
		if res, err := asImage(rep.body); err == nil {
			return res, nil, nil
		}
		return domain.TryOnResult{}, nil, domain.BadGateway("External service returned unparseable response.", errors.New("response is neither JSON nor an image"))
	}

	for _, p := range resultURLPaths {
		if v := gjson.GetBytes(rep.body, p); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
			u, err := parseHTTPURL(v.Str)
			if err != nil {
				return domain.TryOnResult{}, nil, domain.BadGateway("External VTON service returned an invalid image URL.", err)
			}
			return domain.TryOnResult{}, u, nil
		}
	}

	if msg := providerMessage(rep.body); msg != "" {
		return domain.TryOnResult{}, nil, domain.UpstreamRejected(msg, errors.New("provider answered without a result"))
	}
	return domain.TryOnResult{}, nil, domain.BadGateway("External VTON service did not return an image URL.", nil)
}

// asImage devolve os bytes intactos; o Content-Type vem do conteúdo.
func asImage(body []byte) (domain.TryOnResult, error) {
	ct := http.DetectContentType(body)
	if !strings.HasPrefix(ct, "image/") {
		return domain.TryOnResult{}, domain.BadGateway("External service returned an invalid or corrupted image.", errors.New("sniffed "+ct))
	}
	return domain.TryOnResult{Data: body, ContentType: ct}, nil
}

// providerMessage extrai a explicação do provedor, repassada ao cliente sem
// interpretação. Corpo que não é JSON vira texto aparado.
func providerMessage(body []byte) string {
	var msg string
	if gjson.ValidBytes(body) {
		for _, p := range messagePaths {
			if v := gjson.GetBytes(body, p); v.Type == gjson.String && strings.TrimSpace(v.Str) != "" {
				msg = v.Str
				break
			}
		}
	} else if text := strings.TrimSpace(string(body)); !strings.HasPrefix(text, "<") {
		// página HTML de erro não é mensagem
		msg = text
	}

	msg = strings.TrimSpace(msg)
	if len(msg) > maxProviderMessage {
		msg = strings.ToValidUTF8(msg[:maxProviderMessage], "")
	}
	return msg
}
