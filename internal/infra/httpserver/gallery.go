package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/middleware"
)

func galleryQuery(req *http.Request) (gallery.Query, error) {
	v := req.URL.Query()
	status, err := gallery.ParseStatusFilter(v.Get("status"))
	if err != nil {
		return gallery.Query{}, err
	}
	from, to := v.Get("from"), v.Get("to")
	for _, d := range []string{from, to} {
		if err := middleware.ValidateDate(d); err != nil {
			return gallery.Query{}, badRequest("%v", err)
		}
	}
	return gallery.Query{
		Text:      middleware.StripControl(v.Get("q")),
		Status:    status,
		DateStart: from,
		DateEnd:   to,
	}, nil
}

type galleryList struct {
	Items []*gallery.Item `json:"items"`
	Count int             `json:"count"`
	Stats gallery.Stats   `json:"stats"`
}

// GET /v1/gallery?q=&status=&from=&to=
func (r *Router) handleListGallery(w http.ResponseWriter, req *http.Request) error {
	q, err := galleryQuery(req)
	if err != nil {
		return err
	}
	items, err := r.gallery.Find(q)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, galleryList{Items: items, Count: len(items), Stats: r.gallery.Stats()})
}

// GET /v1/gallery/stats
func (r *Router) handleGalleryStats(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.gallery.Stats())
}

// GET /v1/gallery/{id}
func (r *Router) handleGetItem(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateItemID(id); err != nil {
		return badRequest("%v", err)
	}
	item, err := r.gallery.Get(id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, item)
}

// DELETE /v1/gallery/{id}
// Unknown ids are not an error; the collection is rewritten unchanged.
func (r *Router) handleDeleteItem(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateItemID(id); err != nil {
		return badRequest("%v", err)
	}
	_, lookupErr := r.gallery.Get(id)
	items, err := r.gallery.Remove(req.Context(), id)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"removed": lookupErr == nil,
		"count":   len(items),
	})
}
