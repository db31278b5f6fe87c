package httpserver

import (
	"net/http"

	"github.com/bryanwahyu/leafdoctor/internal/application/navigator"
)

// GET /v1/view?q=&status=&from=&to=
func (r *Router) handleView(w http.ResponseWriter, req *http.Request) error {
	q, err := galleryQuery(req)
	if err != nil {
		return err
	}
	v, err := r.nav.View(q)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, v)
}

// PUT /v1/view
// Body: {"screen": "gallery"}
func (r *Router) handleNavigate(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Screen string `json:"screen"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	screen, err := navigator.ParseScreen(body.Screen)
	if err != nil {
		return err
	}
	if err := r.nav.Navigate(screen); err != nil {
		return err
	}
	return r.handleView(w, req)
}

// GET /v1/diseases
func (r *Router) handleDiseases(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.nav.Catalog().Diseases)
}

// GET /v1/about
func (r *Router) handleAbout(w http.ResponseWriter, req *http.Request) error {
	return writeJSON(w, http.StatusOK, r.nav.Catalog().App)
}
