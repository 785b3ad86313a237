package web

import (
	"database/sql"
	"encoding/json"
	"html/template"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/hpungsan/smartqr/internal/config"
	"github.com/hpungsan/smartqr/internal/content"
	"github.com/hpungsan/smartqr/internal/errors"
	"github.com/hpungsan/smartqr/internal/history"
	"github.com/hpungsan/smartqr/internal/ops"
)

// maxBodyBytes bounds JSON request bodies on the API routes.
const maxBodyBytes = 1 << 20

// Handlers contains HTTP route handlers for the web UI and JSON API.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	renderer *Renderer
	logger   *zap.Logger
}

// HandleList handles GET /history, the newest-first history list.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	input := ops.ListInput{
		List:          q.Get("list"),
		Kind:          q.Get("kind"),
		FavoritesOnly: parseBoolParam(r, "favorites"),
		Limit:         parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset:        parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	nav := lo.CoalesceOrEmpty(input.List, "all")
	title := listTitle(history.List(input.List))
	if input.FavoritesOnly {
		nav, title = "favorites", "Favorites"
	}

	data := ListPageData{
		PageData:      h.renderer.page(title, nav),
		Items:         result.Items,
		Pagination:    result.Pagination,
		List:          input.List,
		Kind:          input.Kind,
		Kinds:         lo.Map(content.Kinds(), func(k content.Kind, _ int) string { return string(k) }),
		FavoritesOnly: input.FavoritesOnly,
	}
	data.PrevURL, data.NextURL = pageURLs(r.URL, result.Pagination)

	h.renderer.renderPage(w, r, "list", data)
}

// HandleSearch handles GET /history/search, a substring search over content.
func (h *Handlers) HandleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	data := SearchPageData{
		PageData: h.renderer.page("Search", "search"),
		Query:    query,
		List:     r.URL.Query().Get("list"),
		HasQuery: query != "",
	}

	if query != "" {
		result, err := ops.Search(r.Context(), h.db, ops.SearchInput{
			Query:  query,
			List:   data.List,
			Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
			Offset: parseIntParam(r, "offset", 0),
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		if wantsJSON(r) {
			renderJSON(w, http.StatusOK, result)
			return
		}
		data.Items = result.Items
		data.Pagination = result.Pagination
	}

	// htmx live search swaps only the results
	if r.Header.Get("HX-Target") == "results" {
		h.renderer.renderBlock(w, http.StatusOK, "search", "search-results", data)
		return
	}
	h.renderer.renderPage(w, r, "search", data)
}

// HandleDetail handles GET /history/{list}/{id}.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	entry, err := ops.Fetch(r.Context(), h.db, ops.FetchInput{
		List: chi.URLParam(r, "list"),
		ID:   chi.URLParam(r, "id"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, entry)
		return
	}

	data := DetailPageData{
		PageData: h.renderer.page(string(entry.Kind), string(entry.List)),
		Entry:    entry,
		Fields: lo.Map(content.Schema(entry.Kind), func(key string, _ int) FieldRow {
			return FieldRow{Key: key, Value: entry.Fields[key]}
		}),
	}
	if entry.Kind == content.KindText {
		data.RenderedHTML = h.renderer.renderMarkdown(entry.Content)
	}
	if entry.Action != nil {
		data.ActionHref = template.URL(entry.Action.Target)
	}

	h.renderer.renderPage(w, r, "detail", data)
}

// HandleDelete handles DELETE /history/{list}/{id} (and the POST form fallback).
func (h *Handlers) HandleDelete(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Delete(r.Context(), h.db, ops.DeleteInput{
		List: chi.URLParam(r, "list"),
		ID:   chi.URLParam(r, "id"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	back := "/history?list=" + url.QueryEscape(result.List)
	switch {
	case isHTMX(r):
		w.Header().Set("HX-Redirect", back)
		w.WriteHeader(http.StatusOK)
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	default:
		http.Redirect(w, r, back, http.StatusSeeOther)
	}
}

// HandleFavorite handles POST /history/{list}/{id}/favorite, toggling the mark.
func (h *Handlers) HandleFavorite(w http.ResponseWriter, r *http.Request) {
	list, id := chi.URLParam(r, "list"), chi.URLParam(r, "id")
	result, err := ops.ToggleFavorite(r.Context(), h.db, ops.ToggleFavoriteInput{List: list, ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	switch {
	case isHTMX(r):
		label := lo.Ternary(result.Favorite, "★ Favorited", "☆ Favorite")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`<span class="favorite">` + label + `</span>`))
	case wantsJSON(r):
		renderJSON(w, http.StatusOK, result)
	default:
		http.Redirect(w, r, "/history/"+url.PathEscape(list)+"/"+url.PathEscape(id), http.StatusSeeOther)
	}
}

// classifyRequest is the body of POST /api/classify.
type classifyRequest struct {
	Raw string `json:"raw"`
}

// encodeRequest is the body of POST /api/encode.
type encodeRequest struct {
	Mode     string            `json:"mode"`
	FormData map[string]string `json:"form_data"`
}

// HandleClassify handles POST /api/classify.
func (h *Handlers) HandleClassify(w http.ResponseWriter, r *http.Request) {
	var req classifyRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderJSONError(w, err)
		return
	}
	renderJSON(w, http.StatusOK, ops.Classify(ops.ClassifyInput{Raw: req.Raw}))
}

// HandleEncode handles POST /api/encode.
func (h *Handlers) HandleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := decodeBody(w, r, &req); err != nil {
		renderJSONError(w, err)
		return
	}
	result, err := ops.Encode(ops.EncodeInput{Mode: req.Mode, FormData: req.FormData})
	if err != nil {
		renderJSONError(w, asQRError(err))
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleHealth handles GET /health.
func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status, code := "ok", http.StatusOK
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Error("health: database ping failed", zap.Error(err))
		status, code = "unavailable", http.StatusServiceUnavailable
	}
	renderJSON(w, code, map[string]string{"status": status, "version": h.renderer.version})
}

// decodeBody reads a size-limited JSON body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) *errors.QRError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.NewInvalidRequest("invalid request body: " + err.Error())
	}
	return nil
}

// pageURLs returns the previous and next page links, empty when there is none.
func pageURLs(u *url.URL, p ops.Pagination) (prev, next string) {
	link := func(offset int) string {
		q := u.Query()
		q.Set("offset", strconv.Itoa(offset))
		q.Set("limit", strconv.Itoa(p.Limit))
		return u.Path + "?" + q.Encode()
	}
	if p.Offset > 0 {
		prev = link(max(p.Offset-p.Limit, 0))
	}
	if p.HasMore {
		next = link(p.Offset + p.Limit)
	}
	return prev, next
}

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return defaultVal
	}
	return v
}

// parseBoolParam parses a boolean query parameter.
func parseBoolParam(r *http.Request, name string) bool {
	s := r.URL.Query().Get(name)
	return s == "true" || s == "1" || s == "on"
}

// listTitle names a history list for page headings.
func listTitle(l history.List) string {
	switch l {
	case history.ListScanned:
		return "Scanned"
	case history.ListGenerated:
		return "Generated"
	default:
		return "History"
	}
}
