package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/randalmurphal/chopchop/internal/model"
)

// PlanLibrary persists saved execution plans in a local sqlite database.
// Plans are stored as their full JSON shape so exports round-trip exactly.
type PlanLibrary struct {
	db *sql.DB
}

// PlanMeta summarizes a saved plan for listing.
type PlanMeta struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

const plansSchema = `
CREATE TABLE IF NOT EXISTS saved_plans (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	updated_at TEXT NOT NULL,
	payload    TEXT NOT NULL
);
`

// OpenPlanLibrary opens (and initializes) the plan library at path.
func OpenPlanLibrary(path string) (*PlanLibrary, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open plan library: %w", err)
	}
	if _, err := db.Exec(plansSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init plan library schema: %w", err)
	}
	return &PlanLibrary{db: db}, nil
}

// Close releases the underlying database handle.
func (l *PlanLibrary) Close() error {
	return l.db.Close()
}

// SavePlan inserts or replaces a plan. UpdatedAt is refreshed on save.
func (l *PlanLibrary) SavePlan(plan *model.ExecutionPlan) error {
	plan.UpdatedAt = time.Now().UTC()
	payload, err := json.Marshal(plan)
	if err != nil {
		return fmt.Errorf("marshal plan: %w", err)
	}
	_, err = l.db.Exec(`
		INSERT INTO saved_plans (id, title, updated_at, payload)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			updated_at = excluded.updated_at,
			payload = excluded.payload
	`, plan.ID, plan.Title, plan.UpdatedAt.Format(time.RFC3339Nano), string(payload))
	if err != nil {
		return fmt.Errorf("save plan %s: %w", plan.ID, err)
	}
	return nil
}

// LoadPlan retrieves a plan by id.
func (l *PlanLibrary) LoadPlan(id string) (*model.ExecutionPlan, error) {
	var payload string
	err := l.db.QueryRow(`SELECT payload FROM saved_plans WHERE id = ?`, id).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("plan %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load plan %s: %w", id, err)
	}
	var plan model.ExecutionPlan
	if err := json.Unmarshal([]byte(payload), &plan); err != nil {
		return nil, fmt.Errorf("parse plan %s: %w", id, err)
	}
	return &plan, nil
}

// ListPlans returns saved plan metadata, most recently updated first.
func (l *PlanLibrary) ListPlans() ([]PlanMeta, error) {
	rows, err := l.db.Query(`SELECT id, title, updated_at FROM saved_plans ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var out []PlanMeta
	for rows.Next() {
		var meta PlanMeta
		var ts string
		if err := rows.Scan(&meta.ID, &meta.Title, &ts); err != nil {
			return nil, fmt.Errorf("scan plan row: %w", err)
		}
		meta.UpdatedAt, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, meta)
	}
	return out, rows.Err()
}

// DeletePlan removes a saved plan. Deleting a missing plan is a no-op.
func (l *PlanLibrary) DeletePlan(id string) error {
	_, err := l.db.Exec(`DELETE FROM saved_plans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plan %s: %w", id, err)
	}
	return nil
}
