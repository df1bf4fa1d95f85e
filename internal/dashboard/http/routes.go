package dashboardhttp

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
)

// MountRoutes registers dashboard endpoints onto the router.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(10, time.Minute,
		httprate.WithKeyFuncs(rateLimitKey),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
		}),
	)

	r.Route("/pharmacies/{pharmacyID}", func(pr chi.Router) {
		pr.Get("/snapshot", h.handleSnapshot)
		pr.Get("/trend", h.handleTrend)
		pr.Get("/trend.svg", h.handleTrendSVG)
		pr.Get("/stock", h.handleStock)
	})
	r.Route("/users/{username}/group", func(gr chi.Router) {
		gr.Get("/", h.handleGroup)
		gr.Group(func(er chi.Router) {
			er.Use(limiter)
			er.Get("/export.csv", h.handleGroupCSV)
			er.Get("/pdf", h.handleGroupPDF)
		})
	})
}

// Exports are keyed by portfolio owner, then by client address.
func rateLimitKey(r *http.Request) (string, error) {
	if user := strings.TrimSpace(chi.URLParam(r, "username")); user != "" {
		return "user:" + strings.ToLower(user), nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
