package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"wave-arena/internal/game"
	"wave-arena/internal/results"
)

const (
	defaultResultsLimit = 10
	maxResultsLimit     = 100
	maxBodyBytes        = 4 << 10
)

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap == nil {
		writeError(w, "no state yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, snap)
}

func (h *routerHandlers) handleGetStats(w http.ResponseWriter, r *http.Request) {
	// lock-free snapshot, never the session itself
	snap := h.session.Snapshot()
	stats := map[string]any{
		"seed":      h.session.Seed(),
		"commands":  h.session.QueueStats(),
		"rateLimit": h.rateLimiter.Stats(),
	}
	if snap != nil {
		stats["tickNumber"] = snap.TickNumber
		stats["elapsed"] = snap.Elapsed
		stats["wave"] = snap.Wave.Index
		stats["phase"] = snap.Wave.Phase
		stats["killCount"] = snap.Wave.KillCount
		stats["killTarget"] = snap.Wave.KillTarget
		stats["enemiesAlive"] = len(snap.Enemies)
		stats["spawned"] = snap.Spawned
		stats["totalKills"] = snap.TotalKills
	}
	if h.journal != nil {
		stats["journal"] = h.journal.Stats()
	}
	writeJSON(w, stats)
}

func (h *routerHandlers) handleGetOffer(w http.ResponseWriter, r *http.Request) {
	snap := h.session.Snapshot()
	if snap == nil || snap.Offer == nil {
		writeError(w, game.ErrNoPendingOffer.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, snap.Offer)
}

func (h *routerHandlers) handleGetResults(w http.ResponseWriter, r *http.Request) {
	if h.results == nil {
		writeError(w, "results store not configured", http.StatusServiceUnavailable)
		return
	}

	limit := defaultResultsLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, maxResultsLimit)
	}

	top, err := h.results.Top(r.Context(), limit)
	if err != nil {
		log.Printf("⚠️ Results query failed: %v", err)
		writeError(w, "results unavailable", http.StatusInternalServerError)
		return
	}
	if top == nil {
		top = []results.RunResult{}
	}
	writeJSON(w, map[string]any{"results": top})
}

func (h *routerHandlers) handleSelectReward(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Slot *int `json:"slot"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Slot == nil {
		writeError(w, "slot is required", http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, game.Command{Kind: game.CommandSelectReward, Slot: *req.Slot})
}

func (h *routerHandlers) handleSkipReward(w http.ResponseWriter, r *http.Request) {
	h.dispatch(w, r, game.Command{Kind: game.CommandSkipReward})
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	log.Println("🔁 Restart requested via API")
	h.dispatch(w, r, game.Command{Kind: game.CommandRestart})
}

func (h *routerHandlers) handleHeroMove(w http.ResponseWriter, r *http.Request) {
	var req struct {
		X    *float64 `json:"x"`
		Y    *float64 `json:"y"`
		Stop bool     `json:"stop"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Stop {
		h.dispatch(w, r, game.Command{Kind: game.CommandStopHero})
		return
	}
	if req.X == nil || req.Y == nil {
		writeError(w, "x and y are required", http.StatusBadRequest)
		return
	}
	h.dispatch(w, r, game.Command{Kind: game.CommandMoveHero, Target: game.Vec2{X: *req.X, Y: *req.Y}})
}

// dispatch hands cmd to the session and waits for the tick that applies it.
func (h *routerHandlers) dispatch(w http.ResponseWriter, r *http.Request, cmd game.Command) {
	ctx, cancel := context.WithTimeout(r.Context(), h.commandTimeout)
	defer cancel()

	if err := h.session.Do(ctx, cmd); err != nil {
		writeError(w, err.Error(), statusForError(err))
		return
	}
	writeJSON(w, map[string]bool{"success": true})
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, game.ErrInvalidSlot):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrNoPendingOffer),
		errors.Is(err, game.ErrNotBetweenWaves),
		errors.Is(err, game.ErrEncounterOver):
		return http.StatusConflict
	case errors.Is(err, game.ErrQueueFull):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
