package httpserver

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/leafdoctor/internal/application/analyzer"
	"github.com/bryanwahyu/leafdoctor/internal/middleware"
)

// multipart framing allowance on top of the image limit
const uploadOverhead = 1 << 20

func (r *Router) workflow(req *http.Request) (*analyzer.Workflow, error) {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return nil, badRequest("%v", err)
	}
	return r.sessions.Get(id)
}

// POST /v1/sessions
func (r *Router) handleCreateSession(w http.ResponseWriter, req *http.Request) error {
	wf := r.sessions.Create()
	return writeJSON(w, http.StatusCreated, wf.Snapshot())
}

// GET /v1/sessions/{id}
func (r *Router) handleGetSession(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// DELETE /v1/sessions/{id}
func (r *Router) handleDeleteSession(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSessionID(id); err != nil {
		return badRequest("%v", err)
	}
	if err := r.sessions.Delete(id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// POST /v1/sessions/{id}/camera
func (r *Router) handleStartCamera(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	if err := wf.StartCamera(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// DELETE /v1/sessions/{id}/camera
func (r *Router) handleCancelCamera(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	if err := wf.CancelCamera(); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// POST /v1/sessions/{id}/camera/capture
func (r *Router) handleCapture(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	if err := wf.Capture(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// POST /v1/sessions/{id}/upload
// Accepts multipart/form-data with a "file" field, or the raw image as body.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	req.Body = http.MaxBytesReader(w, req.Body, r.maxUploadBytes+uploadOverhead)

	var src io.Reader = req.Body
	if mt, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type")); mt == "multipart/form-data" {
		file, _, err := req.FormFile("file")
		if err != nil {
			var tooBig *http.MaxBytesError
			if errors.As(err, &tooBig) {
				return err
			}
			return badRequest("multipart field \"file\" is required")
		}
		defer file.Close()
		src = file
	}

	if err := wf.Upload(src); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// POST /v1/sessions/{id}/analyze[?wait=true]
// Without wait the analysis continues in the background and 202 is returned;
// poll the session for the outcome.
func (r *Router) handleAnalyze(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	wait, _ := strconv.ParseBool(req.URL.Query().Get("wait"))

	// the analysis outlives the request; Reset, Close or expiry cancel it
	p, err := wf.StartAnalysis(context.WithoutCancel(req.Context()))
	if err != nil {
		return err
	}
	if !wait {
		return writeJSON(w, http.StatusAccepted, wf.Snapshot())
	}
	if _, err := p.Wait(req.Context()); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// PUT /v1/sessions/{id}/label
// Body: {"label": "Greenhouse row 3"}
func (r *Router) handleLabel(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	var body struct {
		Label string `json:"label"`
	}
	if err := decodeJSON(w, req, &body); err != nil {
		return err
	}
	label, err := middleware.SanitizeLabel(body.Label)
	if err != nil {
		return badRequest("%v", err)
	}
	if err := wf.SetLabel(label); err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}

// POST /v1/sessions/{id}/save
func (r *Router) handleSave(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	item, err := wf.Save(req.Context())
	if err != nil {
		return err
	}
	return writeJSON(w, http.StatusOK, map[string]any{
		"item":    item,
		"session": wf.Snapshot(),
	})
}

// POST /v1/sessions/{id}/reset
func (r *Router) handleReset(w http.ResponseWriter, req *http.Request) error {
	wf, err := r.workflow(req)
	if err != nil {
		return err
	}
	wf.Reset()
	return writeJSON(w, http.StatusOK, wf.Snapshot())
}
