package domain

import "time"

// Grade is a letter grade band assigned from a raw activity score.
type Grade string

// Grade bands, best to worst.
const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// ScoreSnapshot is one immutable grading result for a broadcaster over a
// time window. Grading re-runs append new snapshots; nothing is updated in
// place, so the history stays auditable.
type ScoreSnapshot struct {
	ID                       string    `db:"id"                         json:"id"`
	BroadcasterCanonicalName string    `db:"broadcaster_canonical_name" json:"broadcaster_canonical_name"`
	ComputedAt               time.Time `db:"computed_at"                json:"computed_at"`
	WindowStart              time.Time `db:"window_start"               json:"window_start"`
	WindowEnd                time.Time `db:"window_end"                 json:"window_end"`
	RawScore                 float64   `db:"raw_score"                  json:"raw_score"`
	Grade                    Grade     `db:"grade"                      json:"grade"`
	DealCountInWindow        int       `db:"deal_count_in_window"       json:"deal_count_in_window"`

	// Window roll-ups for the dashboard.
	DealTypes      []string   `db:"deal_types"       json:"deal_types,omitempty"`
	Shows          []string   `db:"shows"            json:"shows,omitempty"`
	Genres         []string   `db:"genres"           json:"genres,omitempty"`
	Regions        []string   `db:"regions"          json:"regions,omitempty"`
	LastActivityAt *time.Time `db:"last_activity_at" json:"last_activity_at,omitempty"`
}
