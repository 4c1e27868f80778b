package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/arencloud/sitehost/internal/deploy"
	"github.com/arencloud/sitehost/internal/objectstore"
)

// deploySite accepts a multipart ZIP upload and runs the provisioning
// transaction for the authenticated user.
func (s *apiServer) deploySite(w http.ResponseWriter, r *http.Request) {
	owner := requestUser(r)

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Limits.MaxZipSize)
	if err := r.ParseMultipartForm(s.cfg.Limits.MaxZipSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusBadRequest, "ZIP file too large")
			return
		}
		respondError(w, http.StatusBadRequest, "No file part")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No file part")
		return
	}
	defer file.Close()
	if header.Filename == "" {
		respondError(w, http.StatusBadRequest, "No selected file")
		return
	}
	archive, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	res, err := s.deployer.Deploy(r.Context(), owner, archive)
	if err != nil {
		s.writeDeployError(w, owner, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"message":     "Deployment successful",
		"site_url":    res.SiteURL,
		"bucket_name": res.BucketName,
		"has_index":   res.HasIndex,
	})
}

// writeDeployError maps the core error taxonomy onto HTTP statuses. Backend
// detail is logged, never echoed.
func (s *apiServer) writeDeployError(w http.ResponseWriter, owner string, err error) {
	var verr *deploy.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, verr.Reason)
	case errors.Is(err, deploy.ErrQuotaExceeded):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, objectstore.ErrAccessDenied):
		s.logger.Error("deployment denied by backend", "owner", owner, "error", err)
		respondError(w, http.StatusForbidden, "Permission denied (check storage policies)")
	default:
		s.logger.Error("deployment failed", "owner", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "Deployment failed due to internal server error")
	}
}

func (s *apiServer) listSites(w http.ResponseWriter, r *http.Request) {
	owner := requestUser(r)
	sites, err := s.deployer.List(r.Context(), owner)
	if err != nil {
		s.logger.Error("listing sites failed", "owner", owner, "error", err)
		respondError(w, http.StatusInternalServerError, "failed to load sites")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

func (s *apiServer) deleteSite(w http.ResponseWriter, r *http.Request) {
	owner := requestUser(r)
	bucket := chi.URLParam(r, "bucket")
	if err := s.deployer.Delete(r.Context(), owner, bucket); err != nil {
		if errors.Is(err, deploy.ErrSiteNotFound) {
			respondError(w, http.StatusNotFound, "Site not found or unauthorized")
			return
		}
		s.logger.Error("site deletion failed", "owner", owner, "bucket", bucket, "error", err)
		respondError(w, http.StatusInternalServerError, "Failed to delete site. Please try again.")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "Site deleted successfully"})
}
