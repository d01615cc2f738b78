package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rps-arena/server/internal/database"
)

// LeaderboardHandler returns the top rated players. Unauthenticated; the
// leaderboard is public.
func LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 || v > 100 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = v
	}

	users, err := database.Leaderboard(r.Context(), limit)
	if err != nil {
		http.Error(w, "failed to fetch leaderboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}
