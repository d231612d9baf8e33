package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"roach-race/internal/race"
	"roach-race/internal/render"
)

const (
	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

// leaderboardRow joins a live standing with the racer's display state
type leaderboardRow struct {
	Rank     int     `json:"rank"`
	Key      string  `json:"key"`
	Name     string  `json:"name"`
	Speed    float64 `json:"speed"`
	Laps     int     `json:"laps"`
	Finished bool    `json:"finished"`
}

// resultView is one browsable results entry with its neighbours
type resultView struct {
	Entry race.RankEntry `json:"entry"`
	Line  string         `json:"line"`
	Prev  int            `json:"prev"`
	Next  int            `json:"next"`
	Total int            `json:"total"`
}

type healthView struct {
	Status   string       `json:"status"`
	Requests LimiterStats `json:"requests"`
	Restarts LimiterStats `json:"restarts"`
}

func (h *routerHandlers) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, healthView{
		Status:   "ok",
		Requests: h.requests.Stats(),
		Restarts: h.restarts.Stats(),
	})
}

func (h *routerHandlers) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, h.engine.GetSnapshot().Clone())
}

func (h *routerHandlers) handleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	limit := defaultLeaderboardLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	snap := h.engine.GetSnapshot().Clone()
	byKey := make(map[string]int, len(snap.Racers))
	for i, rs := range snap.Racers {
		byKey[rs.Key] = i
	}

	standings := h.engine.Leaderboard().GetTop(limit)
	rows := make([]leaderboardRow, 0, len(standings))
	for _, s := range standings {
		row := leaderboardRow{Rank: s.Rank, Key: s.Key, Speed: s.Speed}
		if i, ok := byKey[s.Key]; ok {
			row.Name = snap.Racers[i].Name
			row.Laps = snap.Racers[i].Laps
			row.Finished = snap.Racers[i].Finished
		}
		rows = append(rows, row)
	}

	writeJSON(w, map[string]interface{}{
		"raceId":      snap.RaceID,
		"tick":        snap.Tick,
		"leaderboard": rows,
	})
}

// results returns the final ranking or writes 409 while the race runs
func (h *routerHandlers) results(w http.ResponseWriter) ([]race.RankEntry, bool) {
	ranking := h.engine.Results()
	if ranking == nil {
		writeError(w, "race still running", http.StatusConflict)
		return nil, false
	}
	return ranking, true
}

func (h *routerHandlers) handleGetResults(w http.ResponseWriter, r *http.Request) {
	ranking, ok := h.results(w)
	if !ok {
		return
	}

	lines := make([]string, len(ranking))
	for i, e := range ranking {
		lines[i] = race.FormatResult(e)
	}

	writeJSON(w, map[string]interface{}{
		"raceId":  h.engine.RaceID(),
		"results": ranking,
		"lines":   lines,
		"leader":  ranking[0],
	})
}

func (h *routerHandlers) handleGetResultAt(w http.ResponseWriter, r *http.Request) {
	ranking, ok := h.results(w)
	if !ok {
		return
	}

	rank, err := strconv.Atoi(chi.URLParam(r, "rank"))
	if err != nil {
		writeError(w, "rank must be an integer", http.StatusBadRequest)
		return
	}
	if rank < 0 || rank >= len(ranking) {
		writeError(w, "rank out of range", http.StatusNotFound)
		return
	}

	cursor := race.NewResultCursor(ranking)
	entry, _ := cursor.Seek(rank)
	cursor.Prev()
	prev := cursor.Index()
	cursor.Seek(rank)
	cursor.Next()

	writeJSON(w, resultView{
		Entry: entry,
		Line:  race.FormatResult(entry),
		Prev:  prev,
		Next:  cursor.Index(),
		Total: len(ranking),
	})
}

func (h *routerHandlers) handleGetResultsText(w http.ResponseWriter, r *http.Request) {
	ranking := h.engine.Results()
	if ranking == nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte("race still running\n"))
		return
	}

	var buf bytes.Buffer
	render.WriteResultsTable(&buf, ranking)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleGetFrame(w http.ResponseWriter, r *http.Request) {
	if h.renderer == nil {
		writeError(w, "rendering disabled", http.StatusServiceUnavailable)
		return
	}

	var buf bytes.Buffer
	if err := h.renderer.EncodePNG(&buf, h.engine.GetSnapshot().Clone()); err != nil {
		log.Printf("❌ Frame render failed: %v", err)
		writeError(w, "render failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}

func (h *routerHandlers) handleRestart(w http.ResponseWriter, r *http.Request) {
	log.Println("🔄 Race restart requested via API")
	if err := h.engine.Restart(); err != nil {
		log.Printf("❌ Race restart failed: %v", err)
		writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{
		"success": true,
		"raceId":  h.engine.RaceID(),
	})
}

// Helper functions (package-level for reuse)

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
