package api

import "net/http"

func (s *apiServer) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// healthStorage probes the object-storage backend with a lightweight call
// and reports connection details.
func (s *apiServer) healthStorage(w http.ResponseWriter, r *http.Request) {
	info, err := s.store.Healthcheck(r.Context())
	if err != nil {
		respondJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "failed",
			"error":  err.Error(),
			"tip":    "Check storage endpoint, credentials, or bucket policies.",
		})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":   "connected",
		"provider": "object-storage",
		"endpoint": info.Endpoint,
		"region":   info.Region,
		"message":  "Storage credentials are valid.",
	})
}
