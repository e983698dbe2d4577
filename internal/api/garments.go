package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/imaging"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// GarmentsHandler handles the catalog. Only administrators see codes.
type GarmentsHandler struct {
	DB   *sql.DB
	Feed feed.Publisher
}

type garmentRequest struct {
	Name         string `json:"name"`
	Brand        string `json:"brand"`
	ImageURL     string `json:"image_url"`
	SecurityCode string `json:"security_code"`
}

func (req garmentRequest) validate(w http.ResponseWriter) bool {
	if err := model.ValidateGarment(req.Name, req.Brand, req.ImageURL, req.SecurityCode); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// List handles GET /api/garments.
func (h *GarmentsHandler) List(w http.ResponseWriter, r *http.Request) {
	garments, err := store.ListGarments(r.Context(), h.DB)
	if err != nil {
		storeError(w, err, "garments")
		return
	}
	if garments == nil {
		garments = []model.Garment{}
	}
	if !isAdmin(r) {
		for i := range garments {
			garments[i] = garments[i].Public()
		}
	}
	jsonResponse(w, http.StatusOK, garments)
}

// Create handles POST /api/garments.
func (h *GarmentsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req garmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.validate(w) {
		return
	}

	g, err := store.CreateGarment(r.Context(), h.DB, req.Name, req.Brand, req.ImageURL, req.SecurityCode)
	if err != nil {
		storeError(w, err, "garment")
		return
	}

	slog.Info("garment added to catalog", "user", GetClaims(r.Context()).Email, "garment", g.Name)
	h.announce(r)
	jsonResponse(w, http.StatusCreated, g)
}

// Get handles GET /api/garments/{id}.
func (h *GarmentsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid garment id")
		return
	}

	g, err := store.GetGarment(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "garment")
		return
	}
	if g == nil {
		jsonError(w, http.StatusNotFound, "garment not found")
		return
	}
	if !isAdmin(r) {
		public := g.Public()
		g = &public
	}
	jsonResponse(w, http.StatusOK, g)
}

// Update handles PUT /api/garments/{id}. Wardrobe copies keep the code they
// were verified with.
func (h *GarmentsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid garment id")
		return
	}

	var req garmentRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.validate(w) {
		return
	}

	if err := store.UpdateGarment(r.Context(), h.DB, id, req.Name, req.Brand, req.ImageURL, req.SecurityCode); err != nil {
		storeError(w, err, "garment")
		return
	}

	g, err := store.GetGarment(r.Context(), h.DB, id)
	slog.Info("garment updated", "user", GetClaims(r.Context()).Email, "garment", id)
	h.announce(r)
	writeReloaded(w, http.StatusOK, g, err, "garment")
}

// Delete handles DELETE /api/garments/{id}.
func (h *GarmentsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid garment id")
		return
	}

	if err := store.DeleteGarment(r.Context(), h.DB, id); err != nil {
		storeError(w, err, "garment")
		return
	}

	slog.Info("garment removed from catalog", "user", GetClaims(r.Context()).Email, "garment", id)
	h.announce(r)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "garment deleted"})
}

// UploadImage handles PUT /api/garments/{id}/image.
func (h *GarmentsHandler) UploadImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid garment id")
		return
	}

	img, ok := readUpload(w, r, imaging.Garment)
	if !ok {
		return
	}

	if err := store.SetGarmentImage(r.Context(), h.DB, id, img.Data, img.MIME); err != nil {
		storeError(w, err, "garment")
		return
	}

	h.announce(r)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "image uploaded"})
}

// GetImage handles GET /api/garments/{id}/image.
func (h *GarmentsHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid garment id")
		return
	}

	data, mime, err := store.GetGarmentImage(r.Context(), h.DB, id)
	if err != nil {
		storeError(w, err, "image")
		return
	}
	writeImage(w, data, mime)
}

func (h *GarmentsHandler) announce(r *http.Request) {
	publish(r, h.Feed, "", feed.TableGarments)
}

func isAdmin(r *http.Request) bool {
	claims := GetClaims(r.Context())
	return claims != nil && model.RoleAtLeast(claims.Role, model.RoleAdmin)
}

// publish announces a change; failures only cost subscribers a refresh.
func publish(r *http.Request, p feed.Publisher, userID string, tables ...string) {
	if p == nil {
		return
	}
	if err := feed.Publish(r.Context(), p, userID, tables...); err != nil {
		slog.Warn("publishing change", "tables", tables, "error", err)
	}
}
