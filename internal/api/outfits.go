package api

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/erazemk/garderoba/internal/advice"
	"github.com/erazemk/garderoba/internal/feed"
	"github.com/erazemk/garderoba/internal/metrics"
	"github.com/erazemk/garderoba/internal/model"
	"github.com/erazemk/garderoba/internal/store"
)

// EmptyClosetMessage is returned when there is nothing to style.
const EmptyClosetMessage = "Closet is empty. Scan items first."

// OutfitsHandler suggests outfits from the caller's wardrobe and keeps the
// ones they save.
type OutfitsHandler struct {
	DB     *sql.DB
	Advice advice.Generator
	Feed   feed.Publisher
}

type suggestRequest struct {
	Occasion string `json:"occasion"`
}

type suggestResponse struct {
	*advice.Suggestion
	Occasion string `json:"occasion"`
}

type saveOutfitRequest struct {
	Title       string   `json:"title"`
	Advice      string   `json:"advice"`
	Combination []string `json:"combination"`
	Occasion    string   `json:"occasion"`
}

// Suggest handles POST /api/outfits/suggest.
func (h *OutfitsHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	if h.Advice == nil {
		jsonError(w, http.StatusServiceUnavailable, "styling is not configured")
		return
	}

	var req suggestRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	occasion := strings.TrimSpace(req.Occasion)
	if occasion == "" {
		occasion = advice.DefaultOccasion
	}

	owner := GetClaims(r.Context()).Email
	items, err := store.ListWardrobe(r.Context(), h.DB, owner)
	if err != nil {
		storeError(w, err, "wardrobe")
		return
	}
	if len(items) == 0 {
		metrics.AdviceRequests.WithLabelValues("empty").Inc()
		jsonError(w, http.StatusBadRequest, EmptyClosetMessage)
		return
	}

	descriptions := make([]string, len(items))
	for i := range items {
		descriptions[i] = items[i].Description()
	}

	start := time.Now()
	suggestion, err := h.Advice.GenerateAdvice(r.Context(), descriptions, occasion)
	metrics.AdviceDuration.Observe(time.Since(start).Seconds())
	if errors.Is(err, advice.ErrInvalidResponse) {
		metrics.AdviceRequests.WithLabelValues("invalid").Inc()
		slog.Warn("unusable styling suggestion", "user", owner, "error", err)
		jsonError(w, http.StatusBadGateway, "The stylist could not put an outfit together. Try again.")
		return
	}
	if err != nil {
		metrics.AdviceRequests.WithLabelValues("error").Inc()
		slog.Error("styling request failed", "user", owner, "error", err)
		jsonError(w, http.StatusBadGateway, "Styling service unavailable.")
		return
	}

	metrics.AdviceRequests.WithLabelValues("ok").Inc()
	jsonResponse(w, http.StatusOK, suggestResponse{Suggestion: suggestion, Occasion: occasion})
}

// List handles GET /api/outfits.
func (h *OutfitsHandler) List(w http.ResponseWriter, r *http.Request) {
	outfits, err := store.ListOutfits(r.Context(), h.DB, GetClaims(r.Context()).Email)
	if err != nil {
		storeError(w, err, "outfits")
		return
	}
	if outfits == nil {
		outfits = []model.Outfit{}
	}
	jsonResponse(w, http.StatusOK, outfits)
}

// Save handles POST /api/outfits.
func (h *OutfitsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req saveOutfitRequest
	if err := decodeJSON(r, &req); err != nil {
		jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Title) == "" || strings.TrimSpace(req.Advice) == "" {
		jsonError(w, http.StatusBadRequest, "title and advice required")
		return
	}

	owner := GetClaims(r.Context()).Email
	outfit, err := store.SaveOutfit(r.Context(), h.DB, owner, req.Title, req.Advice, req.Occasion, req.Combination)
	if err != nil {
		storeError(w, err, "outfit")
		return
	}

	publish(r, h.Feed, owner, feed.TableOutfits)
	jsonResponse(w, http.StatusCreated, outfit)
}

// Delete handles DELETE /api/outfits/{id}.
func (h *OutfitsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	owner := GetClaims(r.Context()).Email
	if err := store.DeleteOutfit(r.Context(), h.DB, owner, r.PathValue("id")); err != nil {
		storeError(w, err, "outfit")
		return
	}

	publish(r, h.Feed, owner, feed.TableOutfits)
	jsonResponse(w, http.StatusOK, map[string]string{"message": "outfit deleted"})
}
