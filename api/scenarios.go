/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built reading histories that seed a new demo user with
  realistic records. Each scenario shows one view of the engine: streaks,
  schedule status, the weekly grid and read-ahead.

AVAILABLE SCENARIOS:
  fresh:          No records; plan starts today
  on-pace:        4 chapters a day for the last 10 days, including today
  behind:         Read for 5 days, then stopped 15 days ago
  broken-streak:  6 days of reading, a gap, then the last 3 days
  finished:       Every chapter read, 4 a day, ending today

HOW SCENARIOS WORK:
 1. Generate a fresh demo user id (nothing is reset or overwritten)
 2. Build completion records with back-dated CompletedAt
 3. Write them through progress.Service.Seed

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "on-pace"}
  → {"scenario_id": "on-pace", "user_id": "demo-1a2b3c4d", "records": 40}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a builder to 'scenarioBuilders'

SEE ALSO:
  - handlers.go: Other user endpoints to inspect the seeded user
  - progress/service.go: Seed
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/warp/reading-engine/curriculum"
	"github.com/warp/reading-engine/progress"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "fresh",
		Name:        "Fresh Start",
		Description: "New reader with no history",
	},
	{
		ID:          "on-pace",
		Name:        "On Pace",
		Description: "Ten consecutive days at 4 chapters a day, ending today",
	},
	{
		ID:          "behind",
		Name:        "Fallen Behind",
		Description: "Five days of reading that stopped fifteen days ago",
	},
	{
		ID:          "broken-streak",
		Name:        "Broken Streak",
		Description: "Six days, a gap, then the last three days",
	},
	{
		ID:          "finished",
		Name:        "Finished",
		Description: "Whole curriculum read at 4 chapters a day",
	},
}

type scenarioBuilder func(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time) []progress.CompletionRecord

var scenarioBuilders = map[string]scenarioBuilder{
	"fresh": func(*curriculum.Curriculum, progress.UserID, int, time.Time) []progress.CompletionRecord {
		return nil
	},
	"on-pace": func(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time) []progress.CompletionRecord {
		return pacedRecords(c, userID, cpd, today, dayRange(-9, 0))
	},
	"behind": func(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time) []progress.CompletionRecord {
		return pacedRecords(c, userID, cpd, today, dayRange(-19, -15))
	},
	"broken-streak": func(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time) []progress.CompletionRecord {
		return pacedRecords(c, userID, cpd, today, append(dayRange(-13, -8), dayRange(-2, 0)...))
	},
	"finished": func(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time) []progress.CompletionRecord {
		days := (c.Len() + cpd - 1) / cpd
		return pacedRecords(c, userID, cpd, today, dayRange(-(days - 1), 0))
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario seeds a new demo user with the requested scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	build, ok := scenarioBuilders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	id := progress.UserID("demo-" + uuid.NewString()[:8])
	recs := build(h.Service.Curriculum(), id, h.Service.ChaptersPerDay(), h.Service.Now().UTC())
	if err := h.Service.Seed(r.Context(), id, recs); err != nil {
		h.writeServiceError(w, "Failed to load scenario", err)
		return
	}

	h.Logger.Info("scenario loaded", "scenario", req.ScenarioID, "user_id", string(id), "records", len(recs))
	writeJSON(w, http.StatusCreated, LoadScenarioResponse{
		ScenarioID: req.ScenarioID,
		UserID:     string(id),
		Records:    len(recs),
	})
}

// =============================================================================
// BUILDERS
// =============================================================================

// dayRange returns the day offsets from..to inclusive (0 = today).
func dayRange(from, to int) []int {
	var days []int
	for d := from; d <= to; d++ {
		days = append(days, d)
	}
	return days
}

// pacedRecords reads the next cpd chapters in curriculum order on each of the
// given day offsets, stamped at noon UTC.
func pacedRecords(c *curriculum.Curriculum, userID progress.UserID, cpd int, today time.Time, days []int) []progress.CompletionRecord {
	noon := time.Date(today.Year(), today.Month(), today.Day(), 12, 0, 0, 0, time.UTC)

	var recs []progress.CompletionRecord
	next := 0
	for _, d := range days {
		at := noon.AddDate(0, 0, d)
		for _, ref := range c.Slice(next, next+cpd) {
			stamp := at
			recs = append(recs, progress.CompletionRecord{
				UserID:      userID,
				Book:        ref.Book,
				Chapter:     ref.Chapter,
				Completed:   true,
				CompletedAt: &stamp,
			})
		}
		next += cpd
	}
	return recs
}
