package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/pkg/zip"
)

type selectionRequest struct {
	URL string `json:"url"`
}

type sceneRequest struct {
	OutfitPrompt string `json:"outfit_prompt"`
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Wizard.Create(r.Context())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+sess.ID)
	a.json(w, http.StatusCreated, sess)
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Wizard.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := a.Wizard.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CastFaces runs the face job and stores the candidates on the session.
func (a *App) CastFaces(w http.ResponseWriter, r *http.Request) {
	var req casting.FaceRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.Wizard.Cast(r.Context(), chi.URLParam(r, "id"), a.credentials(r), req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

func (a *App) SelectFace(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.Wizard.Select(r.Context(), chi.URLParam(r, "id"), req.URL)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

// ShootScene runs the scene job for the selected face.
func (a *App) ShootScene(w http.ResponseWriter, r *http.Request) {
	var req sceneRequest
	if !a.decode(w, r, &req) {
		return
	}
	sess, err := a.Wizard.Shoot(r.Context(), chi.URLParam(r, "id"), a.credentials(r), req.OutfitPrompt)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

func (a *App) RestartSession(w http.ResponseWriter, r *http.Request) {
	sess, err := a.Wizard.Restart(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sess)
}

// SessionArchive downloads the scene images as a zip file.
func (a *App) SessionArchive(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	images, err := a.Wizard.SceneImages(r.Context(), id)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	assets := make([]zip.Asset, 0, len(images))
	for _, img := range images {
		assets = append(assets, zip.Asset{Filename: img.Name, MIME: img.MIME, Data: img.Data})
	}
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=storyboard-%s.zip", id))
	w.WriteHeader(http.StatusOK)
	if err := zip.Write(w, assets, time.Now()); err != nil {
		a.Logger.Error().Err(err).Str("session_id", id).Msg("archive write failed")
	}
}
