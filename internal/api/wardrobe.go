package api

import (
	"database/sql"
	"log/slog"
	"net/http"
	"strings"

	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/imaging"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// WardrobeHandler handles the caller's own wardrobe.
type WardrobeHandler struct {
	DB   *sql.DB
	Feed feed.Publisher
}

type manualItemRequest struct {
	Name     string `json:"name"`
	Brand    string `json:"brand"`
	ImageURL string `json:"image_url"`
}

// List handles GET /api/wardrobe.
func (h *WardrobeHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := store.ListWardrobe(r.Context(), h.DB, GetClaims(r.Context()).Email)
	if err != nil {
		storeError(w, err, "wardrobe")
		return
	}
	if items == nil {
		items = []model.WardrobeItem{}
	}
	jsonResponse(w, http.StatusOK, items)
}

// Get handles GET /api/wardrobe/{id}.
func (h *WardrobeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	item, err := store.GetWardrobeItem(r.Context(), h.DB, GetClaims(r.Context()).Email, id)
	if err != nil {
		storeError(w, err, "wardrobe item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusNotFound, "wardrobe item not found")
		return
	}
	jsonResponse(w, http.StatusOK, item)
}

// AddManual handles POST /api/wardrobe. It takes either JSON with an image
// URL or a multipart form with name, brand and an image file. Manual items
// are archived permanently.
func (h *WardrobeHandler) AddManual(w http.ResponseWriter, r *http.Request) {
	owner := GetClaims(r.Context()).Email

	var req manualItemRequest
	var upload *imaging.Result
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		img, ok := readUpload(w, r, imaging.Garment)
		if !ok {
			return
		}
		upload = img
		req.Name = r.FormValue("name")
		req.Brand = r.FormValue("brand")
	} else if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.Brand) == "" ||
		(upload == nil && strings.TrimSpace(req.ImageURL) == "") {
		jsonError(w, http.StatusBadRequest, "name, brand, and image required")
		return
	}

	var item *model.WardrobeItem
	var err error
	if upload != nil {
		item, err = store.CreateManualUpload(r.Context(), h.DB, owner, req.Name, req.Brand, upload.Data, upload.MIME)
	} else {
		item, err = store.CreateManualItem(r.Context(), h.DB, owner, req.Name, req.Brand, req.ImageURL)
	}
	if err != nil {
		storeError(w, err, "wardrobe item")
		return
	}
	if item == nil {
		jsonError(w, http.StatusInternalServerError, "System Error")
		return
	}

	slog.Info("manual item archived", "user", owner, "item", item.ID, "name", item.Name)
	publish(r, h.Feed, owner, feed.TableWardrobe)
	jsonResponse(w, http.StatusCreated, item)
}

// Remove handles DELETE /api/wardrobe/{id}. Authenticated and manual items
// are refused.
func (h *WardrobeHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}
	owner := GetClaims(r.Context()).Email

	if err := store.RemoveWardrobeItem(r.Context(), h.DB, owner, id); err != nil {
		storeError(w, err, "wardrobe item")
		return
	}

	slog.Info("wardrobe item removed", "user", owner, "item", id)
	publish(r, h.Feed, owner, feed.TableWardrobe)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "item removed"})
}

// GetImage handles GET /api/wardrobe/{id}/image.
func (h *WardrobeHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r)
	if !ok {
		jsonError(w, http.StatusBadRequest, "invalid item id")
		return
	}

	data, mime, err := store.GetWardrobeImage(r.Context(), h.DB, GetClaims(r.Context()).Email, id)
	if err != nil {
		storeError(w, err, "image")
		return
	}
	writeImage(w, data, mime)
}
