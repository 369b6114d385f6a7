/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the engine's types from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"github.com/warp/reading-engine/curriculum"
	"github.com/warp/reading-engine/progress"
)

// =============================================================================
// CURRICULUM & LEDGER
// =============================================================================

type BookDTO struct {
	Name     string `json:"name"`
	Chapters int    `json:"chapters"`
}

type CurriculumDTO struct {
	Books         []BookDTO `json:"books"`
	TotalChapters int       `json:"total_chapters"`
}

type ChapterRefDTO struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
}

func toChapterRefDTO(ref curriculum.ChapterRef) ChapterRefDTO {
	return ChapterRefDTO{Book: ref.Book, Chapter: ref.Chapter}
}

// LedgerDTO is the full book → chapter → read map plus counts.
type LedgerDTO struct {
	UserID    string                  `json:"user_id"`
	Books     map[string]map[int]bool `json:"books"`
	Completed int                     `json:"completed"`
	Total     int                     `json:"total"`
}

// =============================================================================
// SCHEDULE
// =============================================================================

type AssignmentDTO struct {
	Chapters    []ChapterRefDTO `json:"chapters"`
	AllComplete bool            `json:"all_complete"`
	ReadAhead   *ChapterRefDTO  `json:"read_ahead"`
	StartIndex  int             `json:"start_index"`
}

func toAssignmentDTO(a progress.Assignment) AssignmentDTO {
	dto := AssignmentDTO{
		Chapters:    make([]ChapterRefDTO, len(a.Chapters)),
		AllComplete: a.AllComplete,
		StartIndex:  a.StartIndex,
	}
	for i, ref := range a.Chapters {
		dto.Chapters[i] = toChapterRefDTO(ref)
	}
	if a.ReadAhead != nil {
		ra := toChapterRefDTO(*a.ReadAhead)
		dto.ReadAhead = &ra
	}
	return dto
}

type WeeklyDTO struct {
	Days []progress.DayStatus `json:"days"`
}

type PlanDTO struct {
	UserID    string `json:"user_id"`
	StartDate string `json:"start_date"`
}

type SavePlanRequest struct {
	StartDate string `json:"start_date"`
}

// =============================================================================
// WRITES
// =============================================================================

// ToggleRequest is the body of PUT .../chapters/{book}/{chapter}.
type ToggleRequest struct {
	Completed *bool `json:"completed"`
}

type ToggleResponse struct {
	Book             string `json:"book"`
	Chapter          int    `json:"chapter"`
	Completed        bool   `json:"completed"`
	DayJustCompleted bool   `json:"day_just_completed"`
}

type MarkBookRequest struct {
	Completed *bool `json:"completed"`
}

type AdvanceSyncRequest struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
}

// SyncFailureResponse reports a partially applied bulk write.
type SyncFailureResponse struct {
	Error         string              `json:"error"`
	Details       string              `json:"details,omitempty"`
	Batches       int                 `json:"batches"`
	FailedBatches int                 `json:"failed_batches"`
	Result        progress.SyncResult `json:"result"`
}

// =============================================================================
// ADMIN
// =============================================================================

type DistributionDTO struct {
	Users    int                  `json:"users"`
	TopBooks []progress.BookCount `json:"top_books"`
	Weekdays map[string]int       `json:"weekdays"`
	Buckets  []progress.Bucket    `json:"buckets"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

type LoadScenarioResponse struct {
	ScenarioID string `json:"scenario_id"`
	UserID     string `json:"user_id"`
	Records    int    `json:"records"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse represents an error in API responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
