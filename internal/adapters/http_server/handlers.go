package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-chi/render"
	"github.com/rs/zerolog/log"

	"github.com/hapjinhope/happiness-crm-miniapp/internal/app"
	"github.com/hapjinhope/happiness-crm-miniapp/internal/domain"
)

const maxBody = 1 << 20

type Handlers struct {
	Objects  *app.ObjectService
	Cian     *app.CianService
	Showings *app.ShowingService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.opts.RatePerMinute, time.Minute))
		r.Use(render.SetContentType(render.ContentTypeJSON))

		r.Get("/objects", h.listObjects)
		r.Get("/objects/{id}", h.getObject)
		r.Patch("/objects/{id}", h.updateObject)
		r.Delete("/objects/{id}", h.deleteObject)
		r.Get("/objects/{id}/summary", h.objectSummary)
		r.Post("/objects/{id}/approve", h.approveObject)

		r.Get("/owners/{id}", h.getOwner)
		r.Post("/owners/{id}/reset", h.resetOwner)

		r.Get("/moderation", h.moderationQueue)
		r.Get("/moderation/count", h.moderationCount)
		r.Get("/publish-check", h.publishCheck)

		r.Get("/cian/order-info", h.cianOrderInfo)
		r.Get("/cian/order-report", h.cianOrderReport)
		r.Get("/cian/images-report", h.cianImagesReport)
		r.Post("/cian/status-sync", h.cianStatusSync)

		r.Post("/showings", h.requestShowing)
		r.Get("/sync/journal", h.syncJournal)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps service errors onto problem responses. notFound is the
// detail shown for a missing entity.
func writeError(w http.ResponseWriter, r *http.Request, err error, notFound string) {
	switch {
	case errors.Is(err, domain.ErrInvalidPayload):
		writeProblem(w, http.StatusBadRequest, "Invalid Payload", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", notFound)
	case errors.Is(err, domain.ErrNotConfigured):
		writeProblem(w, http.StatusServiceUnavailable, "Not Configured", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeProblem(w, http.StatusGatewayTimeout, "Upstream Timeout", err.Error())
	default:
		log.Error().Err(err).Str("path", r.URL.Path).Msg("upstream_error")
		writeProblem(w, http.StatusBadGateway, "Upstream Error", err.Error())
	}
}

// intParam reads an optional integer query parameter within [lo, hi].
func intParam(r *http.Request, name string, def, lo, hi int) (int, bool) {
	s := r.URL.Query().Get(name)
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, false
	}
	return n, true
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBody))
	if err != nil {
		writeProblem(w, http.StatusRequestEntityTooLarge, "Payload Too Large", err.Error())
		return nil, false
	}
	return body, true
}

/********** objects **********/

func (h *Handlers) listObjects(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 100, 1, 200)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}
	items, err := h.Objects.Search(r.Context(), r.URL.Query().Get("q"), limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, map[string]any{"items": items})
}

func (h *Handlers) getObject(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Objects.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Объект не найден")
		return
	}
	render.JSON(w, r, rec)
}

func (h *Handlers) objectSummary(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	html, err := h.Objects.Summary(r.Context(), id)
	if err != nil {
		writeError(w, r, err, "Объект не найден")
		return
	}
	render.JSON(w, r, map[string]any{"id": id, "html": html})
}

func (h *Handlers) updateObject(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.Objects.UpdateJSON(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		writeError(w, r, err, "Объект не найден")
		return
	}
	render.JSON(w, r, rec)
}

func (h *Handlers) deleteObject(w http.ResponseWriter, r *http.Request) {
	mode, err := app.ParseDeleteMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if err := h.Objects.Delete(r.Context(), chi.URLParam(r, "id"), mode); err != nil {
		writeError(w, r, err, "Объект не найден")
		return
	}
	render.JSON(w, r, map[string]any{"status": "ok", "mode": mode})
}

func (h *Handlers) approveObject(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Objects.Approve(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Объект не найден")
		return
	}
	render.JSON(w, r, rec)
}

/********** owners & moderation **********/

func (h *Handlers) getOwner(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Objects.Owner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Владелец не найден")
		return
	}
	render.JSON(w, r, rec)
}

func (h *Handlers) resetOwner(w http.ResponseWriter, r *http.Request) {
	rec, err := h.Objects.ResetOwner(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err, "Владелец не найден")
		return
	}
	render.JSON(w, r, rec)
}

func (h *Handlers) moderationQueue(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 100, 1, 200)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 200")
		return
	}
	items, err := h.Objects.ModerationQueue(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, map[string]any{"items": items})
}

func (h *Handlers) moderationCount(w http.ResponseWriter, r *http.Request) {
	n, err := h.Objects.ModerationCount(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, map[string]any{"count": n})
}

func (h *Handlers) publishCheck(w http.ResponseWriter, r *http.Request) {
	out, err := h.Objects.PublishCheck(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, out)
}

/********** CIAN **********/

func (h *Handlers) cianOrderInfo(w http.ResponseWriter, r *http.Request) {
	data, err := h.Cian.OrderInfo(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, data)
}

func (h *Handlers) cianOrderReport(w http.ResponseWriter, r *http.Request) {
	data, err := h.Cian.OrderReport(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, data)
}

func (h *Handlers) cianImagesReport(w http.ResponseWriter, r *http.Request) {
	page, ok := intParam(r, "page", 1, 1, 1<<20)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid page", "page must be a positive integer")
		return
	}
	size, ok := intParam(r, "page_size", 100, 1, 500)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid page_size", "page_size must be an integer between 1 and 500")
		return
	}
	data, err := h.Cian.ImagesReport(r.Context(), page, size)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, data)
}

func (h *Handlers) cianStatusSync(w http.ResponseWriter, r *http.Request) {
	res, err := h.Cian.SyncStatuses(r.Context())
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, res)
}

/********** showings & journal **********/

func (h *Handlers) requestShowing(w http.ResponseWriter, r *http.Request) {
	body, ok := readBody(w, r)
	if !ok {
		return
	}
	rec, err := h.Showings.Request(r.Context(), body)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	render.JSON(w, r, rec)
}

func (h *Handlers) syncJournal(w http.ResponseWriter, r *http.Request) {
	limit, ok := intParam(r, "limit", 50, 1, 500)
	if !ok {
		writeProblem(w, http.StatusBadRequest, "Invalid limit", "limit must be an integer between 1 and 500")
		return
	}
	items, err := h.Objects.RecentPatches(r.Context(), limit)
	if err != nil {
		writeError(w, r, err, "")
		return
	}
	if items == nil {
		items = []domain.PatchEntry{}
	}
	render.JSON(w, r, map[string]any{"items": items})
}
