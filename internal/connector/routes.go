package connector

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed assets
var assets embed.FS

// LogoPath is where the embedded connector logo is served.
const LogoPath = "/images/connector.svg"

// HealthStatus is the body of GET /health.
type HealthStatus struct {
	Status string `json:"status"`
}

// MountPublic registers the unauthenticated routes every connector serves:
// discovery, health and the logo. imageURL overrides the embedded logo.
func MountPublic(r chi.Router, c Connector, imageURL string) {
	r.Get("/", func(w http.ResponseWriter, req *http.Request) {
		base := BaseURL(req)
		img := imageURL
		if img == "" {
			img = base + LogoPath
		}
		WriteJSON(w, http.StatusOK, c.Descriptor().Document(base, img))
	})

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		WriteJSON(w, http.StatusOK, HealthStatus{Status: "UP"})
	})

	images, _ := fs.Sub(assets, "assets")
	r.Handle("/images/*", http.StripPrefix("/images/", http.FileServer(http.FS(images))))
}
