package server

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aeromedia/internal/logging"
	"aeromedia/internal/services"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "degraded",
			"error":  err.Error(),
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type checkoutRequest struct {
	PackageID  string `json:"packageId"`
	AccessCode string `json:"accessCode"`
	Email      string `json:"email"`
}

func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.bridge.CreateCheckout(r.Context(), req.PackageID, req.AccessCode, req.Email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	if result.AlreadyPurchased {
		s.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":            "Already purchased",
			"alreadyPurchased": true,
		})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"sessionId": result.SessionID,
		"url":       result.URL,
	})
}

// handleWebhook reads the raw body before any decoding so the signature is
// computed over exactly what the provider sent. Only a signature failure is
// reported back; everything else acknowledges with 200.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable request body")
		return
	}
	r.Body.Close()

	if err := s.fulfiller.HandleDelivery(r.Context(), body, r.Header.Get("Webhook-Signature")); err != nil {
		s.writeError(w, http.StatusBadRequest, "signature verification failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type downloadRequest struct {
	MediaItemID string `json:"mediaItemId"`
	AccessCode  string `json:"accessCode"`
	Email       string `json:"email"`
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	var req downloadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	grant, err := s.delivery.Download(r.Context(), req.MediaItemID, req.AccessCode, req.Email)
	if err != nil {
		if errors.Is(err, services.ErrForbidden) {
			s.writeJSON(w, http.StatusForbidden, map[string]any{
				"hasAccess": false,
				"error":     services.UserMessage(err),
			})
			return
		}
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"hasAccess": true,
		"url":       grant.URL,
		"fileName":  grant.FileName,
		"fileSize":  grant.FileSize,
		"expiresIn": grant.ExpiresIn,
	})
}

type bulkDownloadRequest struct {
	PackageID    string   `json:"packageId"`
	AccessCode   string   `json:"accessCode"`
	Email        string   `json:"email"`
	MediaItemIDs []string `json:"mediaItemIds"`
}

func (s *Server) handleBulkDownload(w http.ResponseWriter, r *http.Request) {
	var req bulkDownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := s.delivery.BulkDownload(r.Context(), req.PackageID, req.AccessCode, req.Email, req.MediaItemIDs)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	files := make([]map[string]any, 0, len(result.Grants))
	for _, grant := range result.Grants {
		files = append(files, map[string]any{
			"id":   grant.ItemID,
			"name": grant.FileName,
			"url":  grant.URL,
			"size": grant.FileSize,
		})
	}
	s.writeJSON(w, http.StatusOK, files)
}

type trackRequest struct {
	MediaItemID string `json:"mediaItemId"`
	EventType   string `json:"eventType"`
}

// handleTrack always answers 200; a tracking problem is reported only via
// success=false.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req trackRequest
	if err := decodeJSON(r, &req); err != nil || req.MediaItemID == "" || req.EventType == "" {
		s.writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	if err := s.delivery.Track(r.Context(), req.MediaItemID, req.EventType); err != nil {
		s.writeJSON(w, http.StatusOK, map[string]bool{"success": false})
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

func (s *Server) handleViewItem(w http.ResponseWriter, r *http.Request) {
	itemID := chi.URLParam(r, "itemID")
	accessCode := r.URL.Query().Get("code")
	email := r.URL.Query().Get("email")

	view, err := s.delivery.ViewItem(r.Context(), itemID, accessCode, email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, view)
}

func (s *Server) handlePackageContents(w http.ResponseWriter, r *http.Request) {
	accessCode := r.URL.Query().Get("code")
	email := r.URL.Query().Get("email")

	pkg, views, err := s.delivery.PackageContents(r.Context(), accessCode, email)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	s.logger.Debug("package contents served",
		logging.String("package_id", pkg.ID),
		logging.Int("items", len(views)))
	s.writeJSON(w, http.StatusOK, map[string]any{
		"packageId":  pkg.ID,
		"title":      pkg.Title,
		"flightDate": pkg.FlightDate,
		"expired":    pkg.Expired(time.Now()),
		"items":      views,
	})
}
