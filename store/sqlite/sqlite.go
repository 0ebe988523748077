/*
Package sqlite provides a SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements persistence for plans, rules, qualifications, scenarios,
  daily results, and the raw business records metrics derive from. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  engine.DailyStore:         Daily result persistence (full-replace)
  engine.MetricProvider:     Per-user/day metric resolution
  engine.DayMetricProvider:  Batched per-venture/day metric resolution
  engine.UserDirectory:      Venture membership lookup

FULL-REPLACE ENFORCEMENT:
  incentive_daily is keyed by (venture_id, user_id, date) and written
  with INSERT OR REPLACE only. There is no partial UPDATE path; a
  recomputed day always lands as a whole row, so removed rules can
  leave no residue.

KEY TABLES:
  ventures, users, venture_users:     Identity and scoping
  incentive_plans, incentive_rules,
  incentive_qualifications:           Plan configuration
  incentive_scenarios:                Saved what-if configurations
  incentive_daily:                    Computed results (composite key)
  loads, bpo_call_logs,
  hotel_reviews, hotel_kpi_daily:     Metric source records
  job_run_logs:                       Daily job audit trail

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better
  concurrency: multiple readers don't block, single writer at a time.

USAGE:
  store, err := sqlite.New("./data/incentives.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  eng := engine.New(store, store)

SEE ALSO:
  - engine/store.go: Interface definitions
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/incentive-engine/bpo"
	"github.com/warp/incentive-engine/engine"
	"github.com/warp/incentive-engine/factory"
	"github.com/warp/incentive-engine/freight"
	"github.com/warp/incentive-engine/hotel"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	factory *factory.RuleFactory
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db, factory: factory.NewRuleFactory()}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Identity and scoping
	CREATE TABLE IF NOT EXISTS ventures (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		venture_type TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT UNIQUE,
		role TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS venture_users (
		user_id INTEGER NOT NULL,
		venture_id INTEGER NOT NULL,
		PRIMARY KEY (user_id, venture_id)
	);

	-- Plan configuration
	CREATE TABLE IF NOT EXISTS incentive_plans (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		venture_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT 'USD',
		is_active INTEGER NOT NULL DEFAULT 1,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_plans_venture ON incentive_plans(venture_id, is_active);

	CREATE TABLE IF NOT EXISTS incentive_rules (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id INTEGER NOT NULL,
		role_key TEXT NOT NULL DEFAULT '',
		metric_key TEXT NOT NULL,
		calc_type TEXT NOT NULL,
		rate REAL,
		currency TEXT NOT NULL DEFAULT 'USD',
		qualification_id INTEGER NOT NULL DEFAULT 0,
		config_json TEXT,
		is_enabled INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_rules_plan ON incentive_rules(plan_id);

	CREATE TABLE IF NOT EXISTS incentive_qualifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		plan_id INTEGER NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		metric_key TEXT NOT NULL,
		min_value TEXT NOT NULL
	);

	-- Saved what-if configurations (never affect real payouts)
	CREATE TABLE IF NOT EXISTS incentive_scenarios (
		id TEXT PRIMARY KEY,
		venture_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		config_json TEXT NOT NULL,
		created_by INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);

	-- Computed results: composite key, full-replace writes only
	CREATE TABLE IF NOT EXISTS incentive_daily (
		venture_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		amount TEXT NOT NULL,
		currency TEXT NOT NULL DEFAULT 'USD',
		breakdown_json TEXT NOT NULL DEFAULT '[]',
		computed_at TEXT NOT NULL,
		PRIMARY KEY (venture_id, user_id, date)
	);
	CREATE INDEX IF NOT EXISTS idx_daily_user_date ON incentive_daily(user_id, date);

	-- Metric source records
	CREATE TABLE IF NOT EXISTS loads (
		id TEXT PRIMARY KEY,
		venture_id INTEGER NOT NULL,
		created_by INTEGER NOT NULL,
		status TEXT NOT NULL,
		billing_date TEXT NOT NULL,
		bill_amount TEXT NOT NULL DEFAULT '0',
		miles TEXT NOT NULL DEFAULT '0',
		margin TEXT NOT NULL DEFAULT '0'
	);
	CREATE INDEX IF NOT EXISTS idx_loads_venture_date ON loads(venture_id, billing_date);

	CREATE TABLE IF NOT EXISTS bpo_call_logs (
		id TEXT PRIMARY KEY,
		venture_id INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		dial_count INTEGER NOT NULL DEFAULT 1,
		connected INTEGER NOT NULL DEFAULT 0,
		deal_won INTEGER NOT NULL DEFAULT 0,
		started_at TEXT NOT NULL,
		ended_at TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_calls_venture_start ON bpo_call_logs(venture_id, started_at);

	CREATE TABLE IF NOT EXISTS hotel_reviews (
		id TEXT PRIMARY KEY,
		venture_id INTEGER NOT NULL,
		responded_by INTEGER NOT NULL DEFAULT 0,
		review_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_reviews_venture_date ON hotel_reviews(venture_id, review_date);

	CREATE TABLE IF NOT EXISTS hotel_kpi_daily (
		venture_id INTEGER NOT NULL,
		date TEXT NOT NULL,
		adr TEXT NOT NULL DEFAULT '0',
		revpar TEXT NOT NULL DEFAULT '0',
		PRIMARY KEY (venture_id, date)
	);

	-- Daily job audit trail
	CREATE TABLE IF NOT EXISTS job_run_logs (
		id TEXT PRIMARY KEY,
		venture_id INTEGER,
		job_name TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		ended_at TEXT NOT NULL,
		stats_json TEXT NOT NULL DEFAULT '{}',
		error TEXT
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// VENTURES & USERS
// =============================================================================

// Venture is one business line (freight brokerage, hotel, BPO floor).
type Venture struct {
	ID        int64
	Name      string
	Type      string
	IsActive  bool
	CreatedAt time.Time
}

// UserRecord is the persisted user identity.
type UserRecord struct {
	ID        int64
	Name      string
	Email     string
	Role      string
	CreatedAt time.Time
}

func (s *Store) SaveVenture(ctx context.Context, v Venture) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO ventures (id, name, venture_type, is_active, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		v.ID, v.Name, v.Type, boolToInt(v.IsActive), timestamp(v.CreatedAt))
	return err
}

func (s *Store) GetVenture(ctx context.Context, id int64) (*Venture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, venture_type, is_active, created_at FROM ventures WHERE id = ?`, id)

	var v Venture
	var active int
	var createdAt string
	if err := row.Scan(&v.ID, &v.Name, &v.Type, &active, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	v.IsActive = active != 0
	v.CreatedAt = parseTimestamp(createdAt)
	return &v, nil
}

func (s *Store) ListVentures(ctx context.Context, activeOnly bool) ([]Venture, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, name, venture_type, is_active, created_at FROM ventures ORDER BY id`
	if activeOnly {
		query = `SELECT id, name, venture_type, is_active, created_at FROM ventures WHERE is_active = 1 ORDER BY id`
	}
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ventures []Venture
	for rows.Next() {
		var v Venture
		var active int
		var createdAt string
		if err := rows.Scan(&v.ID, &v.Name, &v.Type, &active, &createdAt); err != nil {
			return nil, err
		}
		v.IsActive = active != 0
		v.CreatedAt = parseTimestamp(createdAt)
		ventures = append(ventures, v)
	}
	return ventures, rows.Err()
}

func (s *Store) SaveUser(ctx context.Context, u UserRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Empty emails go in as NULL so the UNIQUE constraint only binds
	// real addresses. Conflicts on id update in place; a conflict on
	// email errors rather than replacing the other user's row.
	email := sql.NullString{String: u.Email, Valid: u.Email != ""}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, email, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			email = excluded.email,
			role = excluded.role`,
		u.ID, u.Name, email, u.Role, timestamp(u.CreatedAt))
	return err
}

func (s *Store) GetUser(ctx context.Context, id int64) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, email, role, created_at FROM users WHERE id = ?`, id)

	var u UserRecord
	var email sql.NullString
	var createdAt string
	if err := row.Scan(&u.ID, &u.Name, &email, &u.Role, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	u.Email = email.String
	u.CreatedAt = parseTimestamp(createdAt)
	return &u, nil
}

func (s *Store) AssignUserToVenture(ctx context.Context, userID, ventureID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO venture_users (user_id, venture_id) VALUES (?, ?)`,
		userID, ventureID)
	return err
}

// UserVentureIDs returns the ventures a user belongs to.
func (s *Store) UserVentureIDs(ctx context.Context, userID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT venture_id FROM venture_users WHERE user_id = ? ORDER BY venture_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// VentureUsers implements engine.UserDirectory.
func (s *Store) VentureUsers(ctx context.Context, ventureID engine.VentureID) ([]engine.User, error) {
	records, err := s.VentureUserRecords(ctx, int64(ventureID))
	if err != nil {
		return nil, err
	}
	users := make([]engine.User, 0, len(records))
	for _, r := range records {
		users = append(users, engine.User{ID: engine.UserID(r.ID), Role: r.Role})
	}
	return users, nil
}

// VentureUserRecords returns full user records for a venture (for API
// display; the engine only ever sees engine.User).
func (s *Store) VentureUserRecords(ctx context.Context, ventureID int64) ([]UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, u.email, u.role, u.created_at
		FROM users u
		JOIN venture_users vu ON vu.user_id = u.id
		WHERE vu.venture_id = ?
		ORDER BY u.id`, ventureID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []UserRecord
	for rows.Next() {
		var u UserRecord
		var email sql.NullString
		var createdAt string
		if err := rows.Scan(&u.ID, &u.Name, &email, &u.Role, &createdAt); err != nil {
			return nil, err
		}
		u.Email = email.String
		u.CreatedAt = parseTimestamp(createdAt)
		records = append(records, u)
	}
	return records, rows.Err()
}

// =============================================================================
// PLANS
// =============================================================================

// SavePlan inserts or updates a plan. A zero ID inserts and the
// assigned id is returned.
func (s *Store) SavePlan(ctx context.Context, p engine.Plan) (engine.PlanID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	effectiveTo := sql.NullString{}
	if !p.EffectiveTo.IsZero() {
		effectiveTo = sql.NullString{String: p.EffectiveTo.String(), Valid: true}
	}

	if p.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO incentive_plans (venture_id, name, description, currency, is_active, effective_from, effective_to, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(p.VentureID), p.Name, p.Description, p.Currency,
			boolToInt(p.IsActive), p.EffectiveFrom.String(), effectiveTo, timestamp(time.Now()))
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		return engine.PlanID(id), err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO incentive_plans (id, venture_id, name, description, currency, is_active, effective_from, effective_to, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(p.ID), int64(p.VentureID), p.Name, p.Description, p.Currency,
		boolToInt(p.IsActive), p.EffectiveFrom.String(), effectiveTo, timestamp(time.Now()))
	return p.ID, err
}

func (s *Store) GetPlan(ctx context.Context, id engine.PlanID) (*engine.Plan, error) {
	plans, err := s.queryPlans(ctx, `
		SELECT id, venture_id, name, description, currency, is_active, effective_from, effective_to
		FROM incentive_plans WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, nil
	}
	return &plans[0], nil
}

// ListPlans returns a venture's plans, newest effective-from first.
func (s *Store) ListPlans(ctx context.Context, ventureID engine.VentureID) ([]engine.Plan, error) {
	return s.queryPlans(ctx, `
		SELECT id, venture_id, name, description, currency, is_active, effective_from, effective_to
		FROM incentive_plans WHERE venture_id = ?
		ORDER BY effective_from DESC, id DESC`, int64(ventureID))
}

// ActivePlans returns a venture's active plans.
func (s *Store) ActivePlans(ctx context.Context, ventureID engine.VentureID) ([]engine.Plan, error) {
	return s.queryPlans(ctx, `
		SELECT id, venture_id, name, description, currency, is_active, effective_from, effective_to
		FROM incentive_plans WHERE venture_id = ? AND is_active = 1
		ORDER BY effective_from DESC, id DESC`, int64(ventureID))
}

// SetPlanActive flips a plan's active flag. Plans are deactivated,
// never deleted.
func (s *Store) SetPlanActive(ctx context.Context, id engine.PlanID, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.ExecContext(ctx, `
		UPDATE incentive_plans SET is_active = ? WHERE id = ?`, boolToInt(active), int64(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrPlanNotFound
	}
	return nil
}

func (s *Store) queryPlans(ctx context.Context, query string, args ...any) ([]engine.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []engine.Plan
	for rows.Next() {
		var p engine.Plan
		var id, ventureID int64
		var active int
		var from string
		var to sql.NullString
		if err := rows.Scan(&id, &ventureID, &p.Name, &p.Description, &p.Currency, &active, &from, &to); err != nil {
			return nil, err
		}
		p.ID = engine.PlanID(id)
		p.VentureID = engine.VentureID(ventureID)
		p.IsActive = active != 0
		p.EffectiveFrom, err = engine.ParseDate(from)
		if err != nil {
			return nil, err
		}
		if to.Valid {
			p.EffectiveTo, err = engine.ParseDate(to.String)
			if err != nil {
				return nil, err
			}
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// =============================================================================
// RULES
// =============================================================================

// SaveRule inserts or updates a rule. A zero ID inserts and the
// assigned id is returned. Rules are stored in their JSON row shape
// and re-validated through the factory on every load: a malformed
// stored rule surfaces as a configuration error, never a silent skip.
func (s *Store) SaveRule(ctx context.Context, rule engine.Rule) (engine.RuleID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rj := s.factory.ToJSON(rule)
	var configJSON sql.NullString
	if rj.Config != nil {
		data, err := json.Marshal(rj.Config)
		if err != nil {
			return 0, err
		}
		configJSON = sql.NullString{String: string(data), Valid: true}
	}
	var rate sql.NullFloat64
	if rj.Rate != nil {
		rate = sql.NullFloat64{Float64: *rj.Rate, Valid: true}
	}

	if rule.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO incentive_rules (plan_id, role_key, metric_key, calc_type, rate, currency, qualification_id, config_json, is_enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			int64(rule.PlanID), rule.RoleKey, rule.MetricKey, string(rule.CalcType()),
			rate, rule.Currency, int64(rule.QualificationID), configJSON, boolToInt(rule.IsEnabled))
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		return engine.RuleID(id), err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO incentive_rules (id, plan_id, role_key, metric_key, calc_type, rate, currency, qualification_id, config_json, is_enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		int64(rule.ID), int64(rule.PlanID), rule.RoleKey, rule.MetricKey, string(rule.CalcType()),
		rate, rule.Currency, int64(rule.QualificationID), configJSON, boolToInt(rule.IsEnabled))
	return rule.ID, err
}

func (s *Store) GetRule(ctx context.Context, id engine.RuleID) (*engine.Rule, error) {
	rules, err := s.queryRules(ctx, `
		SELECT id, plan_id, role_key, metric_key, calc_type, rate, currency, qualification_id, config_json, is_enabled
		FROM incentive_rules WHERE id = ?`, int64(id))
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// ListRules returns a plan's rules (optionally enabled only), in id
// order.
func (s *Store) ListRules(ctx context.Context, planID engine.PlanID, enabledOnly bool) ([]engine.Rule, error) {
	query := `
		SELECT id, plan_id, role_key, metric_key, calc_type, rate, currency, qualification_id, config_json, is_enabled
		FROM incentive_rules WHERE plan_id = ? ORDER BY id`
	if enabledOnly {
		query = `
		SELECT id, plan_id, role_key, metric_key, calc_type, rate, currency, qualification_id, config_json, is_enabled
		FROM incentive_rules WHERE plan_id = ? AND is_enabled = 1 ORDER BY id`
	}
	return s.queryRules(ctx, query, int64(planID))
}

func (s *Store) DeleteRule(ctx context.Context, id engine.RuleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM incentive_rules WHERE id = ?`, int64(id))
	return err
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]engine.Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []engine.Rule
	for rows.Next() {
		var rj factory.RuleJSON
		var rate sql.NullFloat64
		var configJSON sql.NullString
		var enabled int
		if err := rows.Scan(&rj.ID, &rj.PlanID, &rj.RoleKey, &rj.MetricKey, &rj.CalcType,
			&rate, &rj.Currency, &rj.QualificationID, &configJSON, &enabled); err != nil {
			return nil, err
		}
		if rate.Valid {
			rj.Rate = &rate.Float64
		}
		if configJSON.Valid {
			var cfg factory.RuleConfigJSON
			if err := json.Unmarshal([]byte(configJSON.String), &cfg); err != nil {
				return nil, fmt.Errorf("rule %d: corrupt config: %w", rj.ID, err)
			}
			rj.Config = &cfg
		}
		isEnabled := enabled != 0
		rj.IsEnabled = &isEnabled

		rule, err := s.factory.ParseRule(rj)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// =============================================================================
// QUALIFICATIONS
// =============================================================================

func (s *Store) SaveQualification(ctx context.Context, q engine.Qualification) (engine.QualificationID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if q.ID == 0 {
		res, err := s.db.ExecContext(ctx, `
			INSERT INTO incentive_qualifications (plan_id, name, metric_key, min_value)
			VALUES (?, ?, ?, ?)`,
			int64(q.PlanID), q.Name, q.MetricKey, q.MinValue.String())
		if err != nil {
			return 0, err
		}
		id, err := res.LastInsertId()
		return engine.QualificationID(id), err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO incentive_qualifications (id, plan_id, name, metric_key, min_value)
		VALUES (?, ?, ?, ?, ?)`,
		int64(q.ID), int64(q.PlanID), q.Name, q.MetricKey, q.MinValue.String())
	return q.ID, err
}

// PlanQualifications returns a plan's gates keyed by id, ready for
// engine input.
func (s *Store) PlanQualifications(ctx context.Context, planID engine.PlanID) (map[engine.QualificationID]engine.Qualification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, plan_id, name, metric_key, min_value
		FROM incentive_qualifications WHERE plan_id = ?`, int64(planID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	qualifications := make(map[engine.QualificationID]engine.Qualification)
	for rows.Next() {
		var q engine.Qualification
		var id, pid int64
		var minValue string
		if err := rows.Scan(&id, &pid, &q.Name, &q.MetricKey, &minValue); err != nil {
			return nil, err
		}
		q.ID = engine.QualificationID(id)
		q.PlanID = engine.PlanID(pid)
		q.MinValue, err = decimal.NewFromString(minValue)
		if err != nil {
			return nil, fmt.Errorf("qualification %d: corrupt min_value: %w", id, err)
		}
		qualifications[q.ID] = q
	}
	return qualifications, rows.Err()
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioRecord is a saved what-if configuration. ConfigJSON is the
// blob the comparison endpoint interprets; it never affects real
// payouts.
type ScenarioRecord struct {
	ID         string
	VentureID  int64
	Name       string
	ConfigJSON string
	CreatedBy  int64
	CreatedAt  time.Time
}

func (s *Store) SaveScenario(ctx context.Context, rec ScenarioRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO incentive_scenarios (id, venture_id, name, config_json, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.VentureID, rec.Name, rec.ConfigJSON, rec.CreatedBy, timestamp(rec.CreatedAt))
	return err
}

func (s *Store) GetScenario(ctx context.Context, id string) (*ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row := s.db.QueryRowContext(ctx, `
		SELECT id, venture_id, name, config_json, created_by, created_at
		FROM incentive_scenarios WHERE id = ?`, id)

	var rec ScenarioRecord
	var createdAt string
	if err := row.Scan(&rec.ID, &rec.VentureID, &rec.Name, &rec.ConfigJSON, &rec.CreatedBy, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.CreatedAt = parseTimestamp(createdAt)
	return &rec, nil
}

func (s *Store) ListScenarios(ctx context.Context, ventureID int64) ([]ScenarioRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, venture_id, name, config_json, created_by, created_at FROM incentive_scenarios ORDER BY created_at DESC`
	args := []any{}
	if ventureID > 0 {
		query = `SELECT id, venture_id, name, config_json, created_by, created_at FROM incentive_scenarios WHERE venture_id = ? ORDER BY created_at DESC`
		args = append(args, ventureID)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []ScenarioRecord
	for rows.Next() {
		var rec ScenarioRecord
		var createdAt string
		if err := rows.Scan(&rec.ID, &rec.VentureID, &rec.Name, &rec.ConfigJSON, &rec.CreatedBy, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = parseTimestamp(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

func (s *Store) DeleteScenario(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM incentive_scenarios WHERE id = ?`, id)
	return err
}

// =============================================================================
// DAILY RESULTS - engine.DailyStore (full-replace semantics)
// =============================================================================

type breakdownEntry struct {
	RuleID int64  `json:"rule_id"`
	Amount string `json:"amount"`
}

func marshalBreakdown(breakdown []engine.Contribution) (string, error) {
	entries := make([]breakdownEntry, 0, len(breakdown))
	for _, c := range breakdown {
		entries = append(entries, breakdownEntry{RuleID: int64(c.RuleID), Amount: c.Amount.String()})
	}
	data, err := json.Marshal(entries)
	return string(data), err
}

func unmarshalBreakdown(data string) ([]engine.Contribution, error) {
	var entries []breakdownEntry
	if err := json.Unmarshal([]byte(data), &entries); err != nil {
		return nil, err
	}
	breakdown := make([]engine.Contribution, 0, len(entries))
	for _, e := range entries {
		amount, err := decimal.NewFromString(e.Amount)
		if err != nil {
			return nil, err
		}
		breakdown = append(breakdown, engine.Contribution{RuleID: engine.RuleID(e.RuleID), Amount: amount})
	}
	return breakdown, nil
}

// UpsertDailyResult replaces the (venture, user, date) row wholesale.
func (s *Store) UpsertDailyResult(ctx context.Context, result engine.DailyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return upsertDaily(ctx, s.db, result)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func upsertDaily(ctx context.Context, db execer, result engine.DailyResult) error {
	breakdownJSON, err := marshalBreakdown(result.Breakdown)
	if err != nil {
		return err
	}
	currency := result.Currency
	if currency == "" {
		currency = "USD"
	}
	_, err = db.ExecContext(ctx, `
		INSERT OR REPLACE INTO incentive_daily (venture_id, user_id, date, amount, currency, breakdown_json, computed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		int64(result.VentureID), int64(result.UserID), result.Date.String(),
		result.Amount.String(), currency, breakdownJSON, timestamp(result.ComputedAt))
	return err
}

// ReplaceVentureDay atomically clears and rewrites a venture/day.
func (s *Store) ReplaceVentureDay(ctx context.Context, ventureID engine.VentureID, date engine.Date, results []engine.DailyResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM incentive_daily WHERE venture_id = ? AND date = ?`,
		int64(ventureID), date.String()); err != nil {
		return err
	}
	for _, r := range results {
		if err := upsertDaily(ctx, tx, r); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) LoadUserRange(ctx context.Context, ventureID engine.VentureID, userID engine.UserID, from, to engine.Date) ([]engine.DailyResult, error) {
	return s.queryDaily(ctx, `
		SELECT venture_id, user_id, date, amount, currency, breakdown_json, computed_at
		FROM incentive_daily
		WHERE venture_id = ? AND user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, int64(ventureID), int64(userID), from.String(), to.String())
}

func (s *Store) LoadUserWindow(ctx context.Context, userID engine.UserID, from, to engine.Date) ([]engine.DailyResult, error) {
	return s.queryDaily(ctx, `
		SELECT venture_id, user_id, date, amount, currency, breakdown_json, computed_at
		FROM incentive_daily
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, int64(userID), from.String(), to.String())
}

func (s *Store) LoadVentureRange(ctx context.Context, ventureID engine.VentureID, from, to engine.Date) ([]engine.DailyResult, error) {
	return s.queryDaily(ctx, `
		SELECT venture_id, user_id, date, amount, currency, breakdown_json, computed_at
		FROM incentive_daily
		WHERE venture_id = ? AND date >= ? AND date <= ?
		ORDER BY date, user_id`, int64(ventureID), from.String(), to.String())
}

func (s *Store) queryDaily(ctx context.Context, query string, args ...any) ([]engine.DailyResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []engine.DailyResult
	for rows.Next() {
		var r engine.DailyResult
		var ventureID, userID int64
		var date, amount, breakdownJSON, computedAt string
		if err := rows.Scan(&ventureID, &userID, &date, &amount, &r.Currency, &breakdownJSON, &computedAt); err != nil {
			return nil, err
		}
		r.VentureID = engine.VentureID(ventureID)
		r.UserID = engine.UserID(userID)
		var err error
		if r.Date, err = engine.ParseDate(date); err != nil {
			return nil, err
		}
		if r.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if r.Breakdown, err = unmarshalBreakdown(breakdownJSON); err != nil {
			return nil, err
		}
		r.ComputedAt = parseTimestamp(computedAt)
		results = append(results, r)
	}
	return results, rows.Err()
}

// =============================================================================
// METRIC SOURCE RECORDS
// =============================================================================

func (s *Store) SaveLoad(ctx context.Context, l freight.Load) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO loads (id, venture_id, created_by, status, billing_date, bill_amount, miles, margin)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, int64(l.VentureID), int64(l.CreatedBy), l.Status, l.BillingDate.String(),
		l.BillAmount.String(), l.Miles.String(), l.Margin.String())
	return err
}

func (s *Store) SaveCallLog(ctx context.Context, c bpo.CallLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var endedAt sql.NullString
	if !c.EndedAt.IsZero() {
		endedAt = sql.NullString{String: timestamp(c.EndedAt), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO bpo_call_logs (id, venture_id, agent_id, dial_count, connected, deal_won, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, int64(c.VentureID), int64(c.AgentID), c.DialCount,
		boolToInt(c.Connected), boolToInt(c.DealWon), timestamp(c.StartedAt), endedAt)
	return err
}

func (s *Store) SaveReview(ctx context.Context, r hotel.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO hotel_reviews (id, venture_id, responded_by, review_date)
		VALUES (?, ?, ?, ?)`,
		r.ID, int64(r.VentureID), int64(r.RespondedBy), r.ReviewDate.String())
	return err
}

func (s *Store) SaveKpiDaily(ctx context.Context, k hotel.KpiDaily) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO hotel_kpi_daily (venture_id, date, adr, revpar)
		VALUES (?, ?, ?, ?)`,
		int64(k.VentureID), k.Date.String(), k.ADR.String(), k.RevPAR.String())
	return err
}

// =============================================================================
// METRIC PROVIDER - engine.MetricProvider / engine.DayMetricProvider
// =============================================================================

// GetMetrics implements engine.MetricProvider by narrowing the batched
// day fetch to one user.
func (s *Store) GetMetrics(ctx context.Context, ventureID engine.VentureID, userID engine.UserID, date engine.Date) (engine.MetricSet, error) {
	buckets, err := s.GetDayMetrics(ctx, ventureID, date)
	if err != nil {
		return nil, err
	}
	if bucket, ok := buckets[userID]; ok {
		return bucket, nil
	}
	return engine.MetricSet{}, nil
}

// GetDayMetrics implements engine.DayMetricProvider: one query pass per
// business domain, folded through the domain collectors.
func (s *Store) GetDayMetrics(ctx context.Context, ventureID engine.VentureID, date engine.Date) (map[engine.UserID]engine.MetricSet, error) {
	buckets := make(map[engine.UserID]engine.MetricSet)

	loads, err := s.loadsForDay(ctx, ventureID, date)
	if err != nil {
		return nil, err
	}
	engine.MergeMetricSets(buckets, freight.Collect(loads))

	calls, err := s.callLogsForDay(ctx, ventureID, date)
	if err != nil {
		return nil, err
	}
	engine.MergeMetricSets(buckets, bpo.Collect(calls))

	reviews, err := s.reviewsForDay(ctx, ventureID, date)
	if err != nil {
		return nil, err
	}
	engine.MergeMetricSets(buckets, hotel.CollectReviews(reviews))

	kpis, err := s.kpisForDay(ctx, ventureID, date)
	if err != nil {
		return nil, err
	}
	adr, revpar := hotel.AverageKpis(kpis)
	if !adr.IsZero() || !revpar.IsZero() {
		users, err := s.VentureUsers(ctx, ventureID)
		if err != nil {
			return nil, err
		}
		hotel.ApplyVentureAverages(buckets, users, adr, revpar)
	}

	return buckets, nil
}

func (s *Store) loadsForDay(ctx context.Context, ventureID engine.VentureID, date engine.Date) ([]freight.Load, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venture_id, created_by, status, billing_date, bill_amount, miles, margin
		FROM loads WHERE venture_id = ? AND billing_date = ?`,
		int64(ventureID), date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loads []freight.Load
	for rows.Next() {
		var l freight.Load
		var vid, createdBy int64
		var billingDate, billAmount, miles, margin string
		if err := rows.Scan(&l.ID, &vid, &createdBy, &l.Status, &billingDate, &billAmount, &miles, &margin); err != nil {
			return nil, err
		}
		l.VentureID = engine.VentureID(vid)
		l.CreatedBy = engine.UserID(createdBy)
		if l.BillingDate, err = engine.ParseDate(billingDate); err != nil {
			return nil, err
		}
		if l.BillAmount, err = decimal.NewFromString(billAmount); err != nil {
			return nil, err
		}
		if l.Miles, err = decimal.NewFromString(miles); err != nil {
			return nil, err
		}
		if l.Margin, err = decimal.NewFromString(margin); err != nil {
			return nil, err
		}
		loads = append(loads, l)
	}
	return loads, rows.Err()
}

func (s *Store) callLogsForDay(ctx context.Context, ventureID engine.VentureID, date engine.Date) ([]bpo.CallLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	dayStart := timestamp(date.Time())
	dayEnd := timestamp(date.AddDays(1).Time())
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venture_id, agent_id, dial_count, connected, deal_won, started_at, ended_at
		FROM bpo_call_logs WHERE venture_id = ? AND started_at >= ? AND started_at < ?`,
		int64(ventureID), dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var calls []bpo.CallLog
	for rows.Next() {
		var c bpo.CallLog
		var vid, agentID int64
		var connected, dealWon int
		var startedAt string
		var endedAt sql.NullString
		if err := rows.Scan(&c.ID, &vid, &agentID, &c.DialCount, &connected, &dealWon, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		c.VentureID = engine.VentureID(vid)
		c.AgentID = engine.UserID(agentID)
		c.Connected = connected != 0
		c.DealWon = dealWon != 0
		c.StartedAt = parseTimestamp(startedAt)
		if endedAt.Valid {
			c.EndedAt = parseTimestamp(endedAt.String)
		}
		calls = append(calls, c)
	}
	return calls, rows.Err()
}

func (s *Store) reviewsForDay(ctx context.Context, ventureID engine.VentureID, date engine.Date) ([]hotel.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venture_id, responded_by, review_date
		FROM hotel_reviews WHERE venture_id = ? AND review_date = ?`,
		int64(ventureID), date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reviews []hotel.Review
	for rows.Next() {
		var r hotel.Review
		var vid, respondedBy int64
		var reviewDate string
		if err := rows.Scan(&r.ID, &vid, &respondedBy, &reviewDate); err != nil {
			return nil, err
		}
		r.VentureID = engine.VentureID(vid)
		r.RespondedBy = engine.UserID(respondedBy)
		if r.ReviewDate, err = engine.ParseDate(reviewDate); err != nil {
			return nil, err
		}
		reviews = append(reviews, r)
	}
	return reviews, rows.Err()
}

func (s *Store) kpisForDay(ctx context.Context, ventureID engine.VentureID, date engine.Date) ([]hotel.KpiDaily, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT venture_id, date, adr, revpar
		FROM hotel_kpi_daily WHERE venture_id = ? AND date = ?`,
		int64(ventureID), date.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var kpis []hotel.KpiDaily
	for rows.Next() {
		var k hotel.KpiDaily
		var vid int64
		var day, adr, revpar string
		if err := rows.Scan(&vid, &day, &adr, &revpar); err != nil {
			return nil, err
		}
		k.VentureID = engine.VentureID(vid)
		if k.Date, err = engine.ParseDate(day); err != nil {
			return nil, err
		}
		if k.ADR, err = decimal.NewFromString(adr); err != nil {
			return nil, err
		}
		if k.RevPAR, err = decimal.NewFromString(revpar); err != nil {
			return nil, err
		}
		kpis = append(kpis, k)
	}
	return kpis, rows.Err()
}

// =============================================================================
// JOB RUN LOGS
// =============================================================================

// JobRunLog records one execution of a background-style job (the daily
// incentive commit) for audit and UI display.
type JobRunLog struct {
	ID        string
	VentureID *int64
	JobName   string
	Status    string
	StartedAt time.Time
	EndedAt   time.Time
	StatsJSON string
	Error     string
}

func (s *Store) SaveJobRunLog(ctx context.Context, j JobRunLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ventureID sql.NullInt64
	if j.VentureID != nil {
		ventureID = sql.NullInt64{Int64: *j.VentureID, Valid: true}
	}
	var jobErr sql.NullString
	if j.Error != "" {
		jobErr = sql.NullString{String: j.Error, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO job_run_logs (id, venture_id, job_name, status, started_at, ended_at, stats_json, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID, ventureID, j.JobName, j.Status, timestamp(j.StartedAt), timestamp(j.EndedAt), j.StatsJSON, jobErr)
	return err
}

func (s *Store) ListJobRunLogs(ctx context.Context, limit int) ([]JobRunLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, venture_id, job_name, status, started_at, ended_at, stats_json, error
		FROM job_run_logs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []JobRunLog
	for rows.Next() {
		var j JobRunLog
		var ventureID sql.NullInt64
		var startedAt, endedAt string
		var jobErr sql.NullString
		if err := rows.Scan(&j.ID, &ventureID, &j.JobName, &j.Status, &startedAt, &endedAt, &j.StatsJSON, &jobErr); err != nil {
			return nil, err
		}
		if ventureID.Valid {
			j.VentureID = &ventureID.Int64
		}
		j.StartedAt = parseTimestamp(startedAt)
		j.EndedAt = parseTimestamp(endedAt)
		j.Error = jobErr.String
		logs = append(logs, j)
	}
	return logs, rows.Err()
}

// =============================================================================
// RESET (demo/dev only)
// =============================================================================

// Reset clears all data. Only used by the demo loaders.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"ventures", "users", "venture_users",
		"incentive_plans", "incentive_rules", "incentive_qualifications",
		"incentive_scenarios", "incentive_daily",
		"loads", "bpo_call_logs", "hotel_reviews", "hotel_kpi_daily",
		"job_run_logs",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
