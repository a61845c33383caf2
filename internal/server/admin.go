package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"aeromedia/internal/store"
	"aeromedia/internal/textutil"
)

type packagePayload struct {
	ID               string   `json:"id"`
	AccessCode       string   `json:"accessCode"`
	Title            string   `json:"title"`
	FlightDate       string   `json:"flightDate,omitempty"`
	Passengers       []string `json:"passengers,omitempty"`
	PriceCents       *int64   `json:"priceCents,omitempty"`
	RequiresPurchase bool     `json:"requiresPurchase"`
	IsComp           bool     `json:"isComp"`
	ExpiresAt        string   `json:"expiresAt,omitempty"`
	CreatedAt        string   `json:"createdAt"`
	DownloadCount    int64    `json:"downloadCount,omitempty"`
}

func packageToPayload(pkg *store.MediaPackage) packagePayload {
	payload := packagePayload{
		ID:               pkg.ID,
		AccessCode:       pkg.AccessCode,
		Title:            pkg.Title,
		FlightDate:       pkg.FlightDate,
		Passengers:       pkg.Passengers,
		PriceCents:       pkg.PriceCents,
		RequiresPurchase: pkg.RequiresPurchase,
		IsComp:           pkg.IsComp,
		CreatedAt:        pkg.CreatedAt.Format(time.RFC3339),
	}
	if !pkg.ExpiresAt.IsZero() {
		payload.ExpiresAt = pkg.ExpiresAt.Format(time.RFC3339)
	}
	return payload
}

func (s *Server) handleListPackages(w http.ResponseWriter, r *http.Request) {
	packages, err := s.store.ListPackages(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	payload := make([]packagePayload, 0, len(packages))
	for _, pkg := range packages {
		payload = append(payload, packageToPayload(pkg))
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"packages": payload})
}

type createPackageRequest struct {
	AccessCode       string   `json:"accessCode"`
	Title            string   `json:"title"`
	FlightDate       string   `json:"flightDate"`
	Passengers       []string `json:"passengers"`
	PriceCents       *int64   `json:"priceCents"`
	RequiresPurchase bool     `json:"requiresPurchase"`
	IsComp           bool     `json:"isComp"`
	ExpiresAt        string   `json:"expiresAt"`
}

func (s *Server) handleCreatePackage(w http.ResponseWriter, r *http.Request) {
	var req createPackageRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	params := store.NewPackageParams{
		AccessCode:       req.AccessCode,
		Title:            textutil.DisplayTitle(req.Title),
		FlightDate:       req.FlightDate,
		Passengers:       req.Passengers,
		PriceCents:       req.PriceCents,
		RequiresPurchase: req.RequiresPurchase,
		IsComp:           req.IsComp,
	}
	if req.ExpiresAt != "" {
		expires, err := time.Parse(time.RFC3339, req.ExpiresAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "expiresAt must be RFC 3339")
			return
		}
		params.ExpiresAt = expires
	}

	pkg, err := s.store.CreatePackage(r.Context(), params)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, packageToPayload(pkg))
}

func (s *Server) handleGetPackage(w http.ResponseWriter, r *http.Request) {
	pkg, err := s.store.GetPackage(r.Context(), chi.URLParam(r, "packageID"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if pkg == nil {
		s.writeError(w, http.StatusNotFound, "package not found")
		return
	}

	items, err := s.store.ItemsByPackage(r.Context(), pkg.ID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := packageToPayload(pkg)
	itemList := make([]map[string]any, 0, len(items))
	for _, item := range items {
		payload.DownloadCount += item.DownloadCount
		itemList = append(itemList, map[string]any{
			"id":            item.ID,
			"fileName":      item.FileName,
			"fileType":      item.FileType,
			"fileSize":      item.FileSize,
			"downloadCount": item.DownloadCount,
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"package": payload,
		"items":   itemList,
	})
}

func (s *Server) handleExpirePackage(w http.ResponseWriter, r *http.Request) {
	expired, err := s.store.ExpirePackage(r.Context(), chi.URLParam(r, "packageID"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !expired {
		s.writeError(w, http.StatusNotFound, "package not found")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]bool{"expired": true})
}

type addItemRequest struct {
	Bucket       string   `json:"bucket"`
	ObjectPath   string   `json:"objectPath"`
	PreviewPath  string   `json:"previewPath"`
	FileType     string   `json:"fileType"`
	FileName     string   `json:"fileName"`
	FileSize     int64    `json:"fileSize"`
	Width        *int64   `json:"width"`
	Height       *int64   `json:"height"`
	DurationSecs *float64 `json:"durationSecs"`
}

func (s *Server) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := s.store.AddItem(r.Context(), store.NewItemParams{
		PackageID:    chi.URLParam(r, "packageID"),
		Bucket:       req.Bucket,
		ObjectPath:   req.ObjectPath,
		PreviewPath:  req.PreviewPath,
		FileType:     store.FileType(req.FileType),
		FileName:     textutil.SanitizeFileName(req.FileName),
		FileSize:     req.FileSize,
		Width:        req.Width,
		Height:       req.Height,
		DurationSecs: req.DurationSecs,
	})
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]string{"id": item.ID})
}

func (s *Server) handleListPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := s.store.ListPurchases(r.Context())
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	payload := make([]map[string]any, 0, len(purchases))
	for _, purchase := range purchases {
		payload = append(payload, map[string]any{
			"id":                purchase.ID,
			"packageId":         purchase.PackageID,
			"email":             purchase.Email,
			"checkoutSessionId": purchase.CheckoutSessionID,
			"amountCents":       purchase.AmountCents,
			"currency":          purchase.Currency,
			"status":            purchase.Status,
			"createdAt":         purchase.CreatedAt.Format(time.RFC3339),
		})
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"purchases": payload})
}
