package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PGStore is an optional Postgres-backed Store. State rides in a jsonb
// payload; log entries live in their own table so the bigserial key doubles
// as the global sequence counter.
type PGStore struct {
	db *sql.DB
}

func NewPGStore(dsn string) (*PGStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("dsn is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	s := &PGStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PGStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
create table if not exists logistics_requests (
  id text primary key,
  status text not null,
  step int not null,
  payload jsonb not null,
  terminal_at timestamptz,
  created_at timestamptz not null,
  updated_at timestamptz not null
);
create table if not exists logistics_request_logs (
  seq bigserial primary key,
  request_id text not null,
  step int not null,
  agent text not null,
  message text not null,
  created_at timestamptz not null
);
`)
	return err
}

func (s *PGStore) Create(req Request) (State, error) {
	st := State{
		RequestID: req.RequestID,
		Request:   req,
		Status:    StatusAnalyzing,
		AgentLog:  []LogEntry{},
		UpdatedAt: time.Now().UTC(),
	}
	payload, _ := json.Marshal(st)
	res, err := s.db.Exec(`insert into logistics_requests (id, status, step, payload, created_at, updated_at)
values ($1,$2,$3,$4,$5,$5) on conflict (id) do nothing`,
		req.RequestID, st.Status, st.Step, payload, st.UpdatedAt)
	if err != nil {
		return State{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return State{}, fmt.Errorf("%w: %s", ErrDuplicateRequest, req.RequestID)
	}
	return st, nil
}

func (s *PGStore) load(requestID string) (State, error) {
	var raw []byte
	err := s.db.QueryRow(`select payload from logistics_requests where id=$1`, requestID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return State{}, fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
		}
		return State{}, err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return State{}, err
	}
	return st, nil
}

// withState serializes a mutation against the request row. The row lock makes
// concurrent check-then-act sequences from multiple nodes safe: only one
// transaction observes any given prior state.
func (s *PGStore) withState(requestID string, fn func(tx *sql.Tx, st *State) error) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var raw []byte
	err = tx.QueryRow(`select payload from logistics_requests where id=$1 for update`, requestID).Scan(&raw)
	if err != nil {
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
		}
		return err
	}
	var st State
	if err := json.Unmarshal(raw, &st); err != nil {
		return err
	}
	if err := fn(tx, &st); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *PGStore) saveTx(tx *sql.Tx, st State) error {
	st.UpdatedAt = time.Now().UTC()
	payload, _ := json.Marshal(st)
	var terminalAt any
	if st.Status.Terminal() {
		terminalAt = st.UpdatedAt
	}
	_, err := tx.Exec(`update logistics_requests set status=$2, step=$3, payload=$4, updated_at=$5,
terminal_at=coalesce(terminal_at, $6) where id=$1`,
		st.RequestID, st.Status, st.Step, payload, st.UpdatedAt, terminalAt)
	return err
}

func (s *PGStore) AppendLog(requestID string, step int, agent, message string) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if st.Status.Terminal() {
			return fmt.Errorf("%w: %s", ErrUnknownRequest, requestID)
		}
		_, err := tx.Exec(`insert into logistics_request_logs (request_id, step, agent, message, created_at)
values ($1,$2,$3,$4,$5)`, requestID, step, agent, message, time.Now().UTC())
		return err
	})
}

func (s *PGStore) AdvanceStep(requestID string, newStep int) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if st.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, requestID, st.Status)
		}
		if newStep < st.Step {
			return fmt.Errorf("%w: step %d -> %d", ErrInvalidTransition, st.Step, newStep)
		}
		st.Step = newStep
		return s.saveTx(tx, *st)
	})
}

func (s *PGStore) SetStatus(requestID string, status Status) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if !canTransition(st.Status, status) {
			return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, st.Status, status)
		}
		st.Status = status
		return s.saveTx(tx, *st)
	})
}

func (s *PGStore) Transition(requestID string, status Status, step int, agent, message string) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if !canTransition(st.Status, status) {
			return fmt.Errorf("%w: status %s -> %s", ErrInvalidTransition, st.Status, status)
		}
		if _, err := tx.Exec(`insert into logistics_request_logs (request_id, step, agent, message, created_at)
values ($1,$2,$3,$4,$5)`, requestID, step, agent, message, time.Now().UTC()); err != nil {
			return err
		}
		st.Status = status
		return s.saveTx(tx, *st)
	})
}

func (s *PGStore) SetInventoryResult(requestID string, r InventoryResult) error {
	return s.mutate(requestID, func(st *State) { cp := r; st.PhaseResults.Inventory = &cp })
}

func (s *PGStore) SetFleetResult(requestID string, r FleetResult) error {
	return s.mutate(requestID, func(st *State) { cp := r; st.PhaseResults.Fleet = &cp })
}

func (s *PGStore) SetCostResult(requestID string, r CostResult) error {
	return s.mutate(requestID, func(st *State) { cp := r; st.PhaseResults.Cost = &cp })
}

func (s *PGStore) SetMission(requestID string, m MissionState) error {
	return s.mutate(requestID, func(st *State) { cp := m; st.Mission = &cp })
}

func (s *PGStore) mutate(requestID string, fn func(*State)) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if st.Status.Terminal() {
			return fmt.Errorf("%w: %s is %s", ErrInvalidState, requestID, st.Status)
		}
		fn(st)
		return s.saveTx(tx, *st)
	})
}

func (s *PGStore) Snapshot(requestID string) (State, error) {
	st, err := s.load(requestID)
	if err != nil {
		return State{}, err
	}
	rows, err := s.db.Query(`select seq, step, agent, message, created_at from logistics_request_logs
where request_id=$1 and step <= $2 order by seq`, requestID, st.Step)
	if err != nil {
		return State{}, err
	}
	defer rows.Close()
	st.AgentLog = []LogEntry{}
	for rows.Next() {
		var e LogEntry
		if err := rows.Scan(&e.Sequence, &e.Step, &e.Agent, &e.Message, &e.Timestamp); err != nil {
			continue
		}
		st.AgentLog = append(st.AgentLog, e)
	}
	return st, nil
}

func (s *PGStore) HasActive() bool {
	var active bool
	_ = s.db.QueryRow(`select exists(select 1 from logistics_requests where status not in ($1,$2,$3))`,
		StatusRejected, StatusCompleted, StatusFailed).Scan(&active)
	return active
}

func (s *PGStore) Reset(requestID string) error {
	return s.withState(requestID, func(tx *sql.Tx, st *State) error {
		if !st.Status.Terminal() {
			return fmt.Errorf("%w: %s is still %s", ErrInvalidState, requestID, st.Status)
		}
		if _, err := tx.Exec(`delete from logistics_request_logs where request_id=$1`, requestID); err != nil {
			return err
		}
		_, err := tx.Exec(`delete from logistics_requests where id=$1`, requestID)
		return err
	})
}

func (s *PGStore) Sweep(olderThan time.Time) int {
	rows, err := s.db.Query(`delete from logistics_requests where terminal_at is not null and terminal_at < $1 returning id`, olderThan)
	if err != nil {
		return 0
	}
	defer rows.Close()
	removed := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		_, _ = s.db.Exec(`delete from logistics_request_logs where request_id=$1`, id)
		removed++
	}
	return removed
}
