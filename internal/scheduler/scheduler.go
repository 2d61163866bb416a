// Package scheduler implements component H: an FSRS-inspired spaced
// repetition scheduler for memory review and promotion eligibility.
// Grounded on original_source/src/fsrs_scheduler.py, persisted through
// metadb's scheduler logical database (internal/metadb.SchedulerSchema).
package scheduler

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/memoryctl/memoryctl/internal/logging"
	"github.com/memoryctl/memoryctl/internal/memerr"
	"github.com/memoryctl/memoryctl/internal/metadb"
)

var log = logging.GetLogger("scheduler")

// Grade is a review quality signal.
type Grade int

const (
	GradeFail Grade = 1 // contradicted or invalidated
	GradeHard Grade = 2 // not reinforced, weak signal
	GradeGood Grade = 3 // same insight, same project
	GradeEasy Grade = 4 // same insight, different project (strong signal)
)

const (
	initialStability   = 1.0
	initialDifficulty  = 0.5
	initialIntervalDay = 1.0

	minStabilityForPromotion = 2.0
	minReviewsForPromotion   = 2
	minProjectsForPromotion  = 2

	deepStabilityForPromotion = 4.0
	deepReviewsForPromotion   = 5
)

var stabilityMultipliers = map[Grade]float64{
	GradeFail: 0.5,
	GradeHard: 0.8,
	GradeGood: 1.5,
	GradeEasy: 2.2,
}

// State is the current FSRS state for a memory.
type State struct {
	MemoryID          string
	Stability         float64
	Difficulty        float64
	DueDate           time.Time
	ReviewCount       int
	LastReview        *time.Time
	ProjectsValidated []string
	Promoted          bool
	PromotedDate      *time.Time
}

// Scheduler manages review state and promotion eligibility.
type Scheduler struct {
	db *metadb.Database
}

// New wraps db (expected to have been opened via metadb.OpenScheduler).
func New(db *metadb.Database) *Scheduler {
	return &Scheduler{db: db}
}

// Register adds memoryID to tracking with initial FSRS state. Idempotent:
// an existing row is left untouched.
func (s *Scheduler) Register(memoryID, projectID string) error {
	projects, _ := json.Marshal([]string{projectID})
	due := time.Now().UTC().Add(time.Duration(initialIntervalDay * float64(24*time.Hour)))

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO scheduler_state
			(memory_id, project_id, stability, difficulty, due_date, review_count, projects_validated, promoted)
		VALUES (?, ?, ?, ?, ?, 0, ?, 0)
	`, memoryID, projectID, initialStability, initialDifficulty, due.Format(time.RFC3339Nano), string(projects))
	if err != nil {
		return fmt.Errorf("register memory %s: %w", memoryID, err)
	}
	return nil
}

// GetState returns the current state for memoryID, or memerr.ErrNotFound.
func (s *Scheduler) GetState(memoryID string) (*State, error) {
	row := s.db.QueryRow(`
		SELECT memory_id, stability, difficulty, due_date, review_count,
		       last_review, projects_validated, promoted, promoted_date
		FROM scheduler_state WHERE memory_id = ?
	`, memoryID)
	return scanState(row)
}

func scanState(row *sql.Row) (*State, error) {
	var (
		st           State
		dueRaw       string
		lastReview   sql.NullString
		projectsRaw  string
		promoted     int
		promotedDate sql.NullString
	)
	err := row.Scan(&st.MemoryID, &st.Stability, &st.Difficulty, &dueRaw, &st.ReviewCount,
		&lastReview, &projectsRaw, &promoted, &promotedDate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, memerr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	st.DueDate, _ = time.Parse(time.RFC3339Nano, dueRaw)
	st.Promoted = promoted != 0
	_ = json.Unmarshal([]byte(projectsRaw), &st.ProjectsValidated)
	if lastReview.Valid {
		t, _ := time.Parse(time.RFC3339Nano, lastReview.String)
		st.LastReview = &t
	}
	if promotedDate.Valid {
		t, _ := time.Parse(time.RFC3339Nano, promotedDate.String)
		st.PromotedDate = &t
	}
	return &st, nil
}

// RecordReview applies grade's effect on memoryID's FSRS state:
// stability *= multiplier (clamped [0.1,10]), difficulty += (3-grade)*0.1
// (clamped [0,1]), interval = max(0.5, new_stability*(1+(grade-2)*0.5)).
// Logs the event to review_log in the same transaction.
func (s *Scheduler) RecordReview(memoryID string, grade Grade, projectID, sessionID string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		row := tx.QueryRow(`
			SELECT stability, difficulty, projects_validated
			FROM scheduler_state WHERE memory_id = ?
		`, memoryID)

		var stability, difficulty float64
		var projectsRaw string
		if err := row.Scan(&stability, &difficulty, &projectsRaw); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return memerr.ErrNotFound
			}
			return err
		}

		multiplier := stabilityMultipliers[grade]
		newStability := clamp(stability*multiplier, 0.1, 10.0)

		difficultyDelta := float64(3-grade) * 0.1
		newDifficulty := clamp(difficulty+difficultyDelta, 0.0, 1.0)

		intervalDays := newStability * (1 + (float64(grade)-2)*0.5)
		if intervalDays < 0.5 {
			intervalDays = 0.5
		}
		now := time.Now().UTC()
		newDue := now.Add(time.Duration(intervalDays * float64(24*time.Hour)))

		var projects []string
		_ = json.Unmarshal([]byte(projectsRaw), &projects)
		if !contains(projects, projectID) {
			projects = append(projects, projectID)
		}
		projectsJSON, _ := json.Marshal(projects)

		if _, err := tx.Exec(`
			UPDATE scheduler_state SET
				stability = ?, difficulty = ?, due_date = ?,
				review_count = review_count + 1, last_review = ?,
				projects_validated = ?
			WHERE memory_id = ?
		`, newStability, newDifficulty, newDue.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
			string(projectsJSON), memoryID); err != nil {
			return err
		}

		var sessionVal interface{}
		if sessionID != "" {
			sessionVal = sessionID
		}
		if _, err := tx.Exec(`
			INSERT INTO review_log
				(memory_id, review_date, grade, new_stability, new_interval_days, source_session, source_project)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, memoryID, now.Format(time.RFC3339Nano), int(grade), newStability, intervalDays, sessionVal, projectID); err != nil {
			return err
		}

		log.LogReview(memoryID, int(grade), newStability)
		return nil
	})
}

// IsPromotionReady reports whether memoryID meets either promotion path.
func (s *Scheduler) IsPromotionReady(memoryID string) (bool, error) {
	state, err := s.GetState(memoryID)
	if errors.Is(err, memerr.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return eligible(state), nil
}

func eligible(state *State) bool {
	if state.Promoted {
		return false
	}
	if state.Stability >= minStabilityForPromotion &&
		state.ReviewCount >= minReviewsForPromotion &&
		len(state.ProjectsValidated) >= minProjectsForPromotion {
		return true
	}
	if state.Stability >= deepStabilityForPromotion &&
		state.ReviewCount >= deepReviewsForPromotion {
		return true
	}
	return false
}

// PromotionCandidates returns all unpromoted memories meeting either
// promotion path, refined in Go after a broad SQL prefilter.
func (s *Scheduler) PromotionCandidates() ([]*State, error) {
	rows, err := s.db.Query(`
		SELECT memory_id, stability, difficulty, due_date, review_count,
		       last_review, projects_validated, promoted, promoted_date
		FROM scheduler_state
		WHERE promoted = 0 AND stability >= ? AND review_count >= ?
	`, minStabilityForPromotion, minReviewsForPromotion)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []*State
	for rows.Next() {
		var (
			st           State
			dueRaw       string
			lastReview   sql.NullString
			projectsRaw  string
			promoted     int
			promotedDate sql.NullString
		)
		if err := rows.Scan(&st.MemoryID, &st.Stability, &st.Difficulty, &dueRaw, &st.ReviewCount,
			&lastReview, &projectsRaw, &promoted, &promotedDate); err != nil {
			return nil, err
		}
		st.DueDate, _ = time.Parse(time.RFC3339Nano, dueRaw)
		st.Promoted = promoted != 0
		_ = json.Unmarshal([]byte(projectsRaw), &st.ProjectsValidated)
		if lastReview.Valid {
			t, _ := time.Parse(time.RFC3339Nano, lastReview.String)
			st.LastReview = &t
		}
		if promotedDate.Valid {
			t, _ := time.Parse(time.RFC3339Nano, promotedDate.String)
			st.PromotedDate = &t
		}
		if eligible(&st) {
			candidates = append(candidates, &st)
		}
	}
	return candidates, rows.Err()
}

// MarkPromoted flags memoryID as promoted. Called by the promotion
// executor only after the scope transition has already been persisted.
func (s *Scheduler) MarkPromoted(memoryID string) error {
	_, err := s.db.Exec(`
		UPDATE scheduler_state SET promoted = 1, promoted_date = ? WHERE memory_id = ?
	`, time.Now().UTC().Format(time.RFC3339Nano), memoryID)
	return err
}

// PromotedIDs returns the set of all promoted memory ids.
func (s *Scheduler) PromotedIDs() (map[string]struct{}, error) {
	rows, err := s.db.Query(`SELECT memory_id FROM scheduler_state WHERE promoted = 1`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// DueReviews returns memories whose due_date has passed and are not yet promoted.
func (s *Scheduler) DueReviews(asOf time.Time) ([]*State, error) {
	rows, err := s.db.Query(`
		SELECT memory_id, stability, difficulty, due_date, review_count,
		       last_review, projects_validated, promoted, promoted_date
		FROM scheduler_state
		WHERE promoted = 0 AND due_date <= ?
	`, asOf.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var due []*State
	for rows.Next() {
		var (
			st           State
			dueRaw       string
			lastReview   sql.NullString
			projectsRaw  string
			promoted     int
			promotedDate sql.NullString
		)
		if err := rows.Scan(&st.MemoryID, &st.Stability, &st.Difficulty, &dueRaw, &st.ReviewCount,
			&lastReview, &projectsRaw, &promoted, &promotedDate); err != nil {
			return nil, err
		}
		st.DueDate, _ = time.Parse(time.RFC3339Nano, dueRaw)
		st.Promoted = promoted != 0
		_ = json.Unmarshal([]byte(projectsRaw), &st.ProjectsValidated)
		due = append(due, &st)
	}
	return due, rows.Err()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func contains(ss []string, v string) bool {
	for _, s := range ss {
		if s == v {
			return true
		}
	}
	return false
}
