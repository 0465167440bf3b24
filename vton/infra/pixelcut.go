package infra

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"tryon-gateway/vton/domain"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout        = 60 * time.Second
	defaultMaxResultBytes = 32 << 20
)

type PixelcutConfig struct {
	Endpoint string
	APIKey   string

	// Timeout vale para cada tentativa (submit ou download).
	Timeout time.Duration
	// Retries é quantas vezes repetir uma falha transitória (0 = nenhuma).
	Retries    int
	Backoff    time.Duration
	MaxBackoff time.Duration

	// RPS > 0 limita o ritmo de chamadas ao provedor (token bucket global).
	RPS   float64
	Burst int

	MaxResultBytes int64

	HTTPClient *http.Client
	Logger     zerolog.Logger
}

// PixelcutClient implementa domain.Provider.
type PixelcutClient struct {
	cfg      PixelcutConfig
	endpoint *url.URL
	hc       *http.Client
	pacer    *rate.Limiter
	log      zerolog.Logger
}

var _ domain.Provider = (*PixelcutClient)(nil)

func NewPixelcutClient(cfg PixelcutConfig) (*PixelcutClient, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("provider api key is required")
	}
	endpoint, err := parseHTTPURL(cfg.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("provider endpoint: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.MaxResultBytes <= 0 {
		cfg.MaxResultBytes = defaultMaxResultBytes
	}

	hc := cfg.HTTPClient
	if hc == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.MaxIdleConns = 100
		transport.MaxIdleConnsPerHost = 10
		hc = &http.Client{Transport: transport}
	}

	c := &PixelcutClient{
		cfg:      cfg,
		endpoint: endpoint,
		hc:       hc,
		log:      cfg.Logger.With().Str("component", "pixelcut").Logger(),
	}
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.pacer = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return c, nil
}

// Endpoint devolve o endpoint do provedor sem credenciais (para log).
func (c *PixelcutClient) Endpoint() string { return c.endpoint.Redacted() }

// TryOn envia as duas imagens e devolve a imagem composta, buscando-a pela URL
// quando o provedor não a devolve inline.
func (c *PixelcutClient) TryOn(ctx context.Context, person, garment domain.UploadedImage) (domain.TryOnResult, error) {
	body, contentType, err := encodeForm(person, garment)
	if err != nil {
		return domain.TryOnResult{}, &domain.Error{Kind: domain.KindInternal, Message: "Failed to prepare provider request.", Err: err}
	}

	c.log.Info().Str("endpoint", c.endpoint.Redacted()).Int("bytes", len(body)).Msg("calling provider")

	var rep reply
	err = c.withRetries(ctx, "submit", func(actx context.Context) error {
		req, err := http.NewRequestWithContext(actx, http.MethodPost, c.endpoint.String(), bytes.NewReader(body))
		if err != nil {
			return &domain.Error{Kind: domain.KindInternal, Message: "Failed to prepare provider request.", Err: err}
		}
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-API-KEY", c.cfg.APIKey)

		rep, err = c.roundTrip(ctx, req, phaseSubmit)
		return err
	})
	if err != nil {
		return domain.TryOnResult{}, err
	}

	res, resultURL, err := normalize(rep)
	if err != nil {
		return domain.TryOnResult{}, err
	}
	if resultURL == nil {
		return res, nil
	}
	return c.fetch(ctx, resultURL)
}

func (c *PixelcutClient) fetch(ctx context.Context, u *url.URL) (domain.TryOnResult, error) {
	c.log.Info().Str("url", u.Redacted()).Msg("downloading result image")

	var rep reply
	err := c.withRetries(ctx, "fetch", func(actx context.Context) error {
		req, err := http.NewRequestWithContext(actx, http.MethodGet, u.String(), nil)
		if err != nil {
			return domain.BadGateway("External VTON service returned an invalid image URL.", err)
		}
		rep, err = c.roundTrip(ctx, req, phaseFetch)
		return err
	})
	if err != nil {
		return domain.TryOnResult{}, err
	}
	return asImage(rep.body)
}

// withRetries aplica o ritmo (pacer), o timeout por tentativa e o backoff.
func (c *PixelcutClient) withRetries(ctx context.Context, op string, attempt func(actx context.Context) error) error {
	b := newBoundedBackOff(ctx, c.cfg.Retries, c.cfg.Backoff, c.cfg.MaxBackoff)
	n := 0

	return retry(ctx, b, func() error {
		n++
		if err := ctx.Err(); err != nil {
			return domain.UpstreamUnavailable("Request was canceled before the external VTON service answered.", err)
		}
		if c.pacer != nil {
			if err := c.pacer.Wait(ctx); err != nil {
				return domain.UpstreamUnavailable("External VTON service is busy. Please try again later.", err)
			}
		}

		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
		return attempt(actx)
	}, func(err error, next time.Duration) {
		c.log.Warn().Err(err).Str("op", op).Int("attempt", n).Dur("backoff", next).Msg("provider call failed, retrying")
	})
}

type phase int

const (
	phaseSubmit phase = iota
	phaseFetch
)

type reply struct {
	status      int
	contentType string
	body        []byte
}

// roundTrip executa uma tentativa e classifica o resultado.
// parent é o ctx da requisição: serve para distinguir cancelamento do
// cliente (permanente) de timeout da tentativa (transitório).
func (c *PixelcutClient) roundTrip(parent context.Context, req *http.Request, ph phase) (reply, error) {
	resp, err := c.hc.Do(req)
	if err != nil {
		if parent.Err() != nil {
			return reply{}, domain.UpstreamUnavailable("Request was canceled before the external VTON service answered.", err)
		}
		return reply{}, retryable{domain.UpstreamUnavailable("Failed to communicate with external VTON service. Please try again later.", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxResultBytes+1))
	if err != nil {
		if parent.Err() != nil {
			return reply{}, domain.UpstreamUnavailable("Request was canceled before the external VTON service answered.", err)
		}
		return reply{}, retryable{domain.UpstreamUnavailable("Failed to read response from external VTON service.", err)}
	}
	if int64(len(body)) > c.cfg.MaxResultBytes {
		return reply{}, domain.BadGateway("External VTON service returned an oversized response.", nil)
	}

	rep := reply{status: resp.StatusCode, contentType: resp.Header.Get("Content-Type"), body: body}
	return rep, classifyStatus(rep, ph)
}

func classifyStatus(rep reply, ph phase) error {
	status := rep.status
	cause := fmt.Errorf("provider status %d", status)

	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return retryable{domain.UpstreamUnavailable("External VTON service is busy. Please try again later.", cause)}
	case status >= 500:
		return retryable{domain.BadGateway("External VTON service failed to process the request.", cause)}
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		// credencial nossa, não culpa de quem enviou as imagens
		return domain.BadGateway("External VTON service refused the gateway credentials.", cause)
	case ph == phaseFetch:
		return domain.BadGateway("External VTON service result could not be downloaded.", cause)
	default:
		msg := providerMessage(rep.body)
		if msg == "" {
			msg = "External VTON service rejected the images."
		}
		return domain.UpstreamRejected(msg, cause)
	}
}

func parseHTTPURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, errors.New("missing host")
	}
	return u, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func encodeForm(person, garment domain.UploadedImage) ([]byte, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for _, img := range []domain.UploadedImage{person, garment} {
		filename := img.Filename
		if filename == "" {
			filename = img.Field + "." + string(img.Format)
		}

		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(img.Field), quoteEscaper.Replace(filename)))
		h.Set("Content-Type", img.Format.ContentType())

		part, err := mw.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), mw.FormDataContentType(), nil
}
