package vton

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"tryon-gateway/middleware/ratelimit"
	rldomain "tryon-gateway/middleware/ratelimit/domain"
	"tryon-gateway/vton/application"
	"tryon-gateway/vton/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

const (
	fieldPerson  = "person_image"
	fieldGarment = "garment_image"

	// rótulo fixo nas estatísticas (/vton e /vton/ contam juntos)
	statsRoute = "/vton/"

	// folga para boundaries e cabeçalhos do multipart
	multipartOverhead = 1 << 20
	// acima disso o multipart vai para arquivo temporário
	maxMemory = 32 << 20
)

// Handler atende POST /vton/.
type Handler struct {
	Service *application.Service
	KeyFunc ratelimit.KeyFunc
	// Stats é opcional (best-effort).
	Stats rldomain.StatsStore
	// AddLimitHeaders liga X-RateLimit-Limit/Remaining.
	AddLimitHeaders bool
	// MaxUploadBytes é o teto por imagem; o corpo aceita duas mais a folga.
	MaxUploadBytes int64
	Logger         zerolog.Logger
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log := h.logger(r)

	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, ErrorBody{Error: "method_not_allowed", Message: "Use POST with multipart/form-data."})
		return
	}

	key := "unknown"
	if h.KeyFunc != nil {
		key = h.KeyFunc(r)
	}

	out, err := h.tryOn(r, key)
	h.record(r, key, err)

	if out.Decided {
		ratelimit.WriteHeaders(w, out.Decision, h.AddLimitHeaders)
	}
	if err != nil {
		writeError(w, log, err)
		return
	}

	res := out.Result
	filename := "tryon_" + strings.ReplaceAll(uuid.NewString(), "-", "") + "." + res.Ext()

	log.Info().
		Str("client", key).
		Str("file", filename).
		Int("bytes", len(res.Data)).
		Dur("upstream", out.Elapsed).
		Msg("try-on image ready")

	w.Header().Set("Content-Type", res.ContentType)
	w.Header().Set("Content-Disposition", "attachment; filename="+filename)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}

func (h *Handler) tryOn(r *http.Request, key string) (application.Outcome, error) {
	person, garment, err := h.readImages(r)
	if err != nil {
		return application.Outcome{}, err
	}
	return h.Service.TryOn(r.Context(), key, person, garment)
}

func (h *Handler) readImages(r *http.Request) (domain.UploadedImage, domain.UploadedImage, error) {
	var person, garment domain.UploadedImage

	if h.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, 2*h.MaxUploadBytes+multipartOverhead)
	}
	if err := r.ParseMultipartForm(maxMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return person, garment, domain.InvalidImage("Upload is too large.", err)
		}
		return person, garment, domain.InvalidImage("Request must be multipart/form-data with person_image and garment_image.", err)
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	person, err := readPart(r.MultipartForm, fieldPerson)
	if err != nil {
		return person, garment, err
	}
	garment, err = readPart(r.MultipartForm, fieldGarment)
	return person, garment, err
}

func readPart(form *multipart.Form, field string) (domain.UploadedImage, error) {
	img := domain.UploadedImage{Field: field}

	files := form.File[field]
	if len(files) == 0 {
		return img, domain.InvalidImage(img.Label()+" is required.", nil)
	}
	fh := files[0]
	img.Filename = fh.Filename
	img.DeclaredType = fh.Header.Get("Content-Type")

	f, err := fh.Open()
	if err != nil {
		return img, domain.InvalidImage(img.Label()+" could not be read.", err)
	}
	defer f.Close()

	img.Data, err = io.ReadAll(f)
	if err != nil {
		return img, domain.InvalidImage(img.Label()+" could not be read.", err)
	}
	return img, nil
}

func (h *Handler) record(r *http.Request, key string, err error) {
	if h.Stats == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = string(domain.KindOf(err))
	}
	ev := rldomain.StatsEvent{
		Key:     rldomain.Key(key),
		Allowed: outcome != string(domain.KindRateLimited),
		Outcome: outcome,
		Method:  r.Method,
		Path:    statsRoute,
		At:      time.Now(),
	}
	if serr := h.Stats.Record(r.Context(), ev); serr != nil {
		l := h.logger(r)
		l.Warn().Err(serr).Msg("stats record failed")
	}
}

// logger prefere o logger da requisição (hlog), que já carrega req_id e ip.
func (h *Handler) logger(r *http.Request) zerolog.Logger {
	if l := hlog.FromRequest(r); l.GetLevel() != zerolog.Disabled {
		return *l
	}
	return h.Logger
}
