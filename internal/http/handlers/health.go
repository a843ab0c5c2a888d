package handlers

import (
	"net/http"

	"github.com/HyeBin-Hub/Film-Storyboard-Web-1/internal/casting"
)

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"credentials": a.Config.HasRunComfyCredentials(),
	})
}

// Options returns the face attribute choices and defaults for the casting form.
func (a *App) Options(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, casting.Options())
}
