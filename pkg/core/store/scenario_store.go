package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vc_termsheet/pkg/core/scenario"
	"vc_termsheet/pkg/core/valuation"
)

var (
	ErrScenarioNotFound = errors.New("scenario not found")
	ErrRunNotFound      = errors.New("run not found")
)

// ScenarioStore persists scenarios and valuation runs.
// Supports Hybrid Vault: DB when a pool is given, file system otherwise.
type ScenarioStore struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewScenarioStore creates a store. If pool is nil and dir is empty the
// files go under .cache/termsheet.
func NewScenarioStore(pool *pgxpool.Pool, dir string) (*ScenarioStore, error) {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "termsheet")
	}
	if pool == nil {
		for _, sub := range []string{"scenarios", "runs"} {
			if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
	}
	return &ScenarioStore{pool: pool, fileDir: dir}, nil
}

// ScenarioRecord is a stored scenario.
type ScenarioRecord struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Scenario  scenario.Scenario `json:"scenario"`
	CreatedAt time.Time         `json:"created_at"`
}

// RunRecord is a stored valuation table for a scenario.
type RunRecord struct {
	ID         string                     `json:"id"`
	ScenarioID string                     `json:"scenario_id"`
	Engine     map[string]string          `json:"engine,omitempty"`
	Rows       []valuation.RoundValuation `json:"rows"`
	CreatedAt  time.Time                  `json:"created_at"`
}

// SaveScenario stores s under a new ID.
func (st *ScenarioStore) SaveScenario(ctx context.Context, s scenario.Scenario) (ScenarioRecord, error) {
	rec := ScenarioRecord{
		ID:        uuid.New().String(),
		Name:      s.Name,
		Scenario:  s,
		CreatedAt: time.Now().UTC(),
	}

	if st.pool != nil {
		data, err := json.Marshal(s)
		if err != nil {
			return ScenarioRecord{}, fmt.Errorf("failed to marshal scenario: %w", err)
		}
		query := `
			INSERT INTO termsheet_scenarios (id, name, data, created_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := st.pool.Exec(ctx, query, rec.ID, rec.Name, data, rec.CreatedAt); err != nil {
			return ScenarioRecord{}, fmt.Errorf("failed to save scenario: %w", err)
		}
		return rec, nil
	}

	return rec, st.writeFile("scenarios", rec.ID, rec)
}

// GetScenario loads a scenario by ID.
func (st *ScenarioStore) GetScenario(ctx context.Context, id string) (ScenarioRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return ScenarioRecord{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
	}

	if st.pool != nil {
		query := `
			SELECT id::text, name, data, created_at
			FROM termsheet_scenarios
			WHERE id = $1
		`
		var rec ScenarioRecord
		var data []byte
		err := st.pool.QueryRow(ctx, query, id).Scan(&rec.ID, &rec.Name, &data, &rec.CreatedAt)
		if errors.Is(err, pgx.ErrNoRows) {
			return ScenarioRecord{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
		}
		if err != nil {
			return ScenarioRecord{}, fmt.Errorf("failed to load scenario: %w", err)
		}
		if err := json.Unmarshal(data, &rec.Scenario); err != nil {
			return ScenarioRecord{}, fmt.Errorf("failed to unmarshal scenario: %w", err)
		}
		return rec, nil
	}

	var rec ScenarioRecord
	if err := st.readFile("scenarios", id, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ScenarioRecord{}, fmt.Errorf("%w: %s", ErrScenarioNotFound, id)
		}
		return ScenarioRecord{}, err
	}
	return rec, nil
}

// ListScenarios returns every stored scenario, newest first.
func (st *ScenarioStore) ListScenarios(ctx context.Context) ([]ScenarioRecord, error) {
	var out []ScenarioRecord

	if st.pool != nil {
		query := `
			SELECT id::text, name, data, created_at
			FROM termsheet_scenarios
			ORDER BY created_at DESC
		`
		rows, err := st.pool.Query(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var rec ScenarioRecord
			var data []byte
			if err := rows.Scan(&rec.ID, &rec.Name, &data, &rec.CreatedAt); err != nil {
				return nil, fmt.Errorf("failed to scan scenario: %w", err)
			}
			if err := json.Unmarshal(data, &rec.Scenario); err != nil {
				return nil, fmt.Errorf("failed to unmarshal scenario %s: %w", rec.ID, err)
			}
			out = append(out, rec)
		}
		return out, rows.Err()
	}

	entries, err := os.ReadDir(filepath.Join(st.fileDir, "scenarios"))
	if err != nil {
		return nil, fmt.Errorf("failed to list scenarios: %w", err)
	}
	for _, e := range entries {
		if filepath.Ext(e.Name()) != ".json" {
			continue
		}
		var rec ScenarioRecord
		id := e.Name()[:len(e.Name())-len(".json")]
		if err := st.readFile("scenarios", id, &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// SaveRun stores a valuation table computed for scenarioID.
func (st *ScenarioStore) SaveRun(ctx context.Context, scenarioID string, engine map[string]string, rows []valuation.RoundValuation) (RunRecord, error) {
	rec := RunRecord{
		ID:         uuid.New().String(),
		ScenarioID: scenarioID,
		Engine:     engine,
		Rows:       rows,
		CreatedAt:  time.Now().UTC(),
	}

	if st.pool != nil {
		data, err := json.Marshal(rec)
		if err != nil {
			return RunRecord{}, fmt.Errorf("failed to marshal run: %w", err)
		}
		var sid any
		if scenarioID != "" {
			sid = scenarioID
		}
		query := `
			INSERT INTO termsheet_runs (id, scenario_id, data, created_at)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := st.pool.Exec(ctx, query, rec.ID, sid, data, rec.CreatedAt); err != nil {
			return RunRecord{}, fmt.Errorf("failed to save run: %w", err)
		}
		return rec, nil
	}

	return rec, st.writeFile("runs", rec.ID, rec)
}

// GetRun loads a valuation run by ID.
func (st *ScenarioStore) GetRun(ctx context.Context, id string) (RunRecord, error) {
	if _, err := uuid.Parse(id); err != nil {
		return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}

	var rec RunRecord
	if st.pool != nil {
		var data []byte
		err := st.pool.QueryRow(ctx, `SELECT data FROM termsheet_runs WHERE id = $1`, id).Scan(&data)
		if errors.Is(err, pgx.ErrNoRows) {
			return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		if err != nil {
			return RunRecord{}, fmt.Errorf("failed to load run: %w", err)
		}
		if err := json.Unmarshal(data, &rec); err != nil {
			return RunRecord{}, fmt.Errorf("failed to unmarshal run: %w", err)
		}
		return rec, nil
	}

	if err := st.readFile("runs", id, &rec); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RunRecord{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
		}
		return RunRecord{}, err
	}
	return rec, nil
}

// Internal File Helpers

func (st *ScenarioStore) path(kind, id string) string {
	return filepath.Join(st.fileDir, kind, id+".json")
}

func (st *ScenarioStore) writeFile(kind, id string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", kind, err)
	}
	if err := os.WriteFile(st.path(kind, id), data, 0o644); err != nil {
		return fmt.Errorf("failed to save to file store: %w", err)
	}
	return nil
}

func (st *ScenarioStore) readFile(kind, id string, v any) error {
	data, err := os.ReadFile(st.path(kind, id))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("corrupt %s %s: %w", kind, id, err)
	}
	return nil
}
