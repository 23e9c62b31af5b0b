/*
Package sqlite provides the SQLite-backed persistence layer.

PURPOSE:
  Implements storage for the rule catalog (additions, versions, law
  revisions, facility settings), the masters (facilities, children,
  service codes), the daily usage stream, and the monthly billing output.
  In production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

INTERFACES IMPLEMENTED:
  billing.Store: The aggregator's persistence contract

KEY TABLES:
  additions:                  Rule catalog base rows (position preserves catalog order)
  addition_versions:          Time-sliced parameter overrides
  law_revisions:              Named legal change events (audit)
  facility_addition_settings: Per-facility preset enablement
  service_codes:              Statutory code -> base unit mapping
  facilities, children:       Masters the aggregator and exporter read
  usage_records:              Per child/day attendance facts
  billing_records/details:    Aggregation output (draft -> confirmed)

WRITE-TIME INTEGRITY:
  SaveAdditionVersion validates the new version against every stored
  version of the same addition inside one transaction and rejects
  overlapping effective ranges with catalog.ErrVersionOverlap. The read
  path assumes non-overlapping data.

DRAFT GUARD:
  DeleteDraftRecords, UpdateRecordNotes, and ConfirmDrafts only ever
  touch rows with status 'draft'. Confirmed and submitted records are
  immutable through this layer.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/billing.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  agg := billing.NewAggregator(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - billing/aggregator.go: The Store interface this satisfies
  - catalog/versions.go:   The overlap invariant enforced on save
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/careflow/billing-engine/billing"
	"github.com/careflow/billing-engine/catalog"
)

// ErrRecordNotDraft is returned when a mutation targets a billing record
// that has left the draft state.
var ErrRecordNotDraft = errors.New("billing record is not in draft state")

// Store implements catalog and billing persistence using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
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
	-- Rule catalog (position preserves catalog order for tie-breaking)
	CREATE TABLE IF NOT EXISTS additions (
		code TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		short_name TEXT,
		category_code TEXT,
		unit_value INTEGER,
		is_percentage BOOLEAN DEFAULT FALSE,
		percentage_rate TEXT,
		max_per_month INTEGER,
		max_per_day INTEGER DEFAULT 1,
		is_exclusive BOOLEAN DEFAULT FALSE,
		exclusive_group TEXT,
		requirements TEXT,
		requirements_json TEXT,
		applicable_services_json TEXT,
		kind TEXT NOT NULL DEFAULT 'monthly',
		position INTEGER NOT NULL
	);

	-- Versioned overrides of catalog rows
	CREATE TABLE IF NOT EXISTS addition_versions (
		id TEXT PRIMARY KEY,
		addition_code TEXT NOT NULL,
		version_number INTEGER NOT NULL,
		unit_value INTEGER,
		is_percentage BOOLEAN DEFAULT FALSE,
		percentage_rate TEXT,
		requirements TEXT,
		requirements_json TEXT,
		max_per_month INTEGER,
		max_per_day INTEGER,
		effective_from TEXT NOT NULL,
		effective_to TEXT,
		revision_id TEXT,
		notes TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_versions_addition
		ON addition_versions(addition_code, effective_from);

	-- Law revisions (immutable audit trail)
	CREATE TABLE IF NOT EXISTS law_revisions (
		id TEXT PRIMARY KEY,
		revision_date TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		source_url TEXT,
		active BOOLEAN DEFAULT TRUE
	);

	-- Per-facility enablement of facility_preset additions
	CREATE TABLE IF NOT EXISTS facility_addition_settings (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		addition_code TEXT NOT NULL,
		enabled BOOLEAN DEFAULT FALSE,
		status TEXT NOT NULL DEFAULT 'planned',
		effective_from TEXT,
		effective_to TEXT,
		UNIQUE(facility_id, addition_code)
	);

	CREATE INDEX IF NOT EXISTS idx_settings_facility
		ON facility_addition_settings(facility_id);

	-- Statutory service codes
	CREATE TABLE IF NOT EXISTS service_codes (
		id TEXT PRIMARY KEY,
		code TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		category TEXT NOT NULL,
		base_units INTEGER NOT NULL DEFAULT 0,
		description TEXT
	);

	-- Masters
	CREATE TABLE IF NOT EXISTS facilities (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT,
		region_grade INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS children (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		beneficiary_number TEXT,
		income_category TEXT
	);

	-- Daily usage stream (one row per child per day)
	CREATE TABLE IF NOT EXISTS usage_records (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		service_date TEXT NOT NULL,
		status TEXT NOT NULL,
		planned_start TEXT,
		planned_end TEXT,
		actual_start TEXT,
		actual_end TEXT,
		pickup BOOLEAN DEFAULT FALSE,
		dropoff BOOLEAN DEFAULT FALSE,
		addons_json TEXT,
		billing_target BOOLEAN DEFAULT TRUE,
		UNIQUE(facility_id, child_id, service_date)
	);

	CREATE INDEX IF NOT EXISTS idx_usage_facility_date
		ON usage_records(facility_id, service_date);

	-- Monthly billing output
	CREATE TABLE IF NOT EXISTS billing_records (
		id TEXT PRIMARY KEY,
		facility_id TEXT NOT NULL,
		child_id TEXT NOT NULL,
		year_month TEXT NOT NULL,
		service_type TEXT NOT NULL,
		total_units INTEGER NOT NULL DEFAULT 0,
		unit_price TEXT NOT NULL,
		total_amount INTEGER NOT NULL DEFAULT 0,
		copay_amount INTEGER NOT NULL DEFAULT 0,
		insurance_amount INTEGER NOT NULL DEFAULT 0,
		upper_limit INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_billing_facility_month
		ON billing_records(facility_id, year_month);
	CREATE INDEX IF NOT EXISTS idx_billing_status
		ON billing_records(status);

	CREATE TABLE IF NOT EXISTS billing_details (
		id TEXT PRIMARY KEY,
		record_id TEXT NOT NULL,
		service_date TEXT NOT NULL,
		service_code TEXT NOT NULL,
		unit_count INTEGER NOT NULL DEFAULT 0,
		is_absence BOOLEAN DEFAULT FALSE,
		absence_type TEXT,
		additions_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_details_record
		ON billing_details(record_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ADDITION CATALOG
// =============================================================================

// SaveAddition inserts or updates a catalog row. New rows are appended at
// the end of the catalog order; updates keep their position.
func (s *Store) SaveAddition(ctx context.Context, a catalog.Addition) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	requirementsJSON, _ := json.Marshal(a.RequirementsData)
	servicesJSON, _ := json.Marshal(a.ApplicableServices)

	query := `
		INSERT INTO additions
		(code, name, short_name, category_code, unit_value, is_percentage, percentage_rate,
		 max_per_month, max_per_day, is_exclusive, exclusive_group, requirements,
		 requirements_json, applicable_services_json, kind, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM additions))
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			short_name = excluded.short_name,
			category_code = excluded.category_code,
			unit_value = excluded.unit_value,
			is_percentage = excluded.is_percentage,
			percentage_rate = excluded.percentage_rate,
			max_per_month = excluded.max_per_month,
			max_per_day = excluded.max_per_day,
			is_exclusive = excluded.is_exclusive,
			exclusive_group = excluded.exclusive_group,
			requirements = excluded.requirements,
			requirements_json = excluded.requirements_json,
			applicable_services_json = excluded.applicable_services_json,
			kind = excluded.kind
	`

	_, err := s.db.ExecContext(ctx, query,
		a.Code, a.Name, a.ShortName, a.CategoryCode,
		nullIntPtr(a.UnitValue), a.IsPercentage, nullDecimalPtr(a.PercentageRate),
		nullIntPtr(a.MaxPerMonth), a.MaxPerDay, a.IsExclusive, a.ExclusiveGroup,
		a.Requirements, string(requirementsJSON), string(servicesJSON), string(a.Kind),
	)
	return err
}

// GetAddition retrieves one catalog row by code, or nil when absent.
func (s *Store) GetAddition(ctx context.Context, code string) (*catalog.Addition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	additions, err := s.queryAdditions(ctx,
		additionColumns+" FROM additions WHERE code = ?", code)
	if err != nil {
		return nil, err
	}
	if len(additions) == 0 {
		return nil, nil
	}
	return &additions[0], nil
}

// ListAdditions returns the full catalog in catalog order.
func (s *Store) ListAdditions(ctx context.Context) ([]catalog.Addition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryAdditions(ctx,
		additionColumns+" FROM additions ORDER BY position ASC")
}

// DeleteAddition removes a catalog row.
func (s *Store) DeleteAddition(ctx context.Context, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, "DELETE FROM additions WHERE code = ?", code)
	return err
}

const additionColumns = `SELECT code, name, short_name, category_code, unit_value, is_percentage,
	percentage_rate, max_per_month, max_per_day, is_exclusive, exclusive_group,
	requirements, requirements_json, applicable_services_json, kind`

func (s *Store) queryAdditions(ctx context.Context, query string, args ...any) ([]catalog.Addition, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query additions: %w", err)
	}
	defer rows.Close()

	var additions []catalog.Addition
	for rows.Next() {
		var (
			a                catalog.Addition
			shortName        sql.NullString
			categoryCode     sql.NullString
			unitValue        sql.NullInt64
			percentageRate   sql.NullString
			maxPerMonth      sql.NullInt64
			exclusiveGroup   sql.NullString
			requirements     sql.NullString
			requirementsJSON sql.NullString
			servicesJSON     sql.NullString
			kind             string
		)

		if err := rows.Scan(&a.Code, &a.Name, &shortName, &categoryCode, &unitValue,
			&a.IsPercentage, &percentageRate, &maxPerMonth, &a.MaxPerDay,
			&a.IsExclusive, &exclusiveGroup, &requirements, &requirementsJSON,
			&servicesJSON, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan addition: %w", err)
		}

		a.ShortName = shortName.String
		a.CategoryCode = categoryCode.String
		a.UnitValue = intPtr(unitValue)
		a.PercentageRate = decimalPtr(percentageRate)
		a.MaxPerMonth = intPtr(maxPerMonth)
		a.ExclusiveGroup = exclusiveGroup.String
		a.Requirements = requirements.String
		a.Kind = catalog.AdditionKind(kind)
		if requirementsJSON.Valid && requirementsJSON.String != "" {
			json.Unmarshal([]byte(requirementsJSON.String), &a.RequirementsData)
		}
		if servicesJSON.Valid && servicesJSON.String != "" {
			json.Unmarshal([]byte(servicesJSON.String), &a.ApplicableServices)
		}

		additions = append(additions, a)
	}
	return additions, rows.Err()
}

// =============================================================================
// ADDITION VERSIONS
// =============================================================================

// SaveAdditionVersion persists a version after checking its effective
// range against every stored version of the same addition. Overlapping
// ranges are rejected with catalog.ErrVersionOverlap; nothing is written
// in that case.
func (s *Store) SaveAdditionVersion(ctx context.Context, v catalog.AdditionVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.queryVersionsTx(ctx, tx,
		versionColumns+" FROM addition_versions WHERE addition_code = ? AND id != ?",
		v.AdditionCode, v.ID)
	if err != nil {
		return err
	}
	if err := catalog.ValidateVersions(append(existing, v)); err != nil {
		return err
	}

	requirementsJSON, _ := json.Marshal(v.RequirementsData)

	query := `
		INSERT INTO addition_versions
		(id, addition_code, version_number, unit_value, is_percentage, percentage_rate,
		 requirements, requirements_json, max_per_month, max_per_day,
		 effective_from, effective_to, revision_id, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			unit_value = excluded.unit_value,
			is_percentage = excluded.is_percentage,
			percentage_rate = excluded.percentage_rate,
			requirements = excluded.requirements,
			requirements_json = excluded.requirements_json,
			max_per_month = excluded.max_per_month,
			max_per_day = excluded.max_per_day,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to,
			revision_id = excluded.revision_id,
			notes = excluded.notes
	`

	_, err = tx.ExecContext(ctx, query,
		v.ID, v.AdditionCode, v.VersionNumber,
		nullIntPtr(v.UnitValue), v.IsPercentage, nullDecimalPtr(v.PercentageRate),
		v.Requirements, string(requirementsJSON),
		nullIntPtr(v.MaxPerMonth), nullIntPtr(v.MaxPerDay),
		v.EffectiveFrom.String(), nullDatePtr(v.EffectiveTo),
		v.RevisionID, v.Notes,
	)
	if err != nil {
		return fmt.Errorf("failed to save addition version: %w", err)
	}

	return tx.Commit()
}

// ListVersions returns versions for one addition, or every version when
// additionCode is empty, ordered by effective date.
func (s *Store) ListVersions(ctx context.Context, additionCode string) ([]catalog.AdditionVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if additionCode == "" {
		return s.queryVersionsTx(ctx, s.db,
			versionColumns+" FROM addition_versions ORDER BY addition_code, effective_from ASC")
	}
	return s.queryVersionsTx(ctx, s.db,
		versionColumns+" FROM addition_versions WHERE addition_code = ? ORDER BY effective_from ASC",
		additionCode)
}

const versionColumns = `SELECT id, addition_code, version_number, unit_value, is_percentage,
	percentage_rate, requirements, requirements_json, max_per_month, max_per_day,
	effective_from, effective_to, revision_id, notes`

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) queryVersionsTx(ctx context.Context, db querier, query string, args ...any) ([]catalog.AdditionVersion, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query addition versions: %w", err)
	}
	defer rows.Close()

	var versions []catalog.AdditionVersion
	for rows.Next() {
		var (
			v                catalog.AdditionVersion
			unitValue        sql.NullInt64
			percentageRate   sql.NullString
			requirements     sql.NullString
			requirementsJSON sql.NullString
			maxPerMonth      sql.NullInt64
			maxPerDay        sql.NullInt64
			effectiveFrom    string
			effectiveTo      sql.NullString
			revisionID       sql.NullString
			notes            sql.NullString
		)

		if err := rows.Scan(&v.ID, &v.AdditionCode, &v.VersionNumber, &unitValue,
			&v.IsPercentage, &percentageRate, &requirements, &requirementsJSON,
			&maxPerMonth, &maxPerDay, &effectiveFrom, &effectiveTo,
			&revisionID, &notes); err != nil {
			return nil, fmt.Errorf("failed to scan addition version: %w", err)
		}

		v.UnitValue = intPtr(unitValue)
		v.PercentageRate = decimalPtr(percentageRate)
		v.Requirements = requirements.String
		v.MaxPerMonth = intPtr(maxPerMonth)
		v.MaxPerDay = intPtr(maxPerDay)
		v.RevisionID = revisionID.String
		v.Notes = notes.String
		if requirementsJSON.Valid && requirementsJSON.String != "" {
			json.Unmarshal([]byte(requirementsJSON.String), &v.RequirementsData)
		}
		if d, err := catalog.ParseDate(effectiveFrom); err == nil {
			v.EffectiveFrom = d
		}
		if effectiveTo.Valid {
			if d, err := catalog.ParseDate(effectiveTo.String); err == nil {
				v.EffectiveTo = &d
			}
		}

		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// =============================================================================
// LAW REVISIONS
// =============================================================================

// SaveLawRevision saves a revision. Revisions are append-mostly; an
// update only ever flips the active flag or amends the description.
func (s *Store) SaveLawRevision(ctx context.Context, r catalog.LawRevision) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO law_revisions (id, revision_date, name, description, source_url, active)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			description = excluded.description,
			source_url = excluded.source_url,
			active = excluded.active
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.Date.String(), r.Name, r.Description, r.SourceURL, r.Active)
	return err
}

// ListLawRevisions returns all revisions, newest first.
func (s *Store) ListLawRevisions(ctx context.Context) ([]catalog.LawRevision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, revision_date, name, description, source_url, active FROM law_revisions ORDER BY revision_date DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var revisions []catalog.LawRevision
	for rows.Next() {
		var r catalog.LawRevision
		var date string
		var description, sourceURL sql.NullString
		if err := rows.Scan(&r.ID, &date, &r.Name, &description, &sourceURL, &r.Active); err != nil {
			return nil, err
		}
		if d, err := catalog.ParseDate(date); err == nil {
			r.Date = d
		}
		r.Description = description.String
		r.SourceURL = sourceURL.String
		revisions = append(revisions, r)
	}
	return revisions, rows.Err()
}

// =============================================================================
// FACILITY ADDITION SETTINGS
// =============================================================================

// SaveFacilitySetting upserts one facility's enablement of a preset
// addition. The (facility, addition) pair is unique.
func (s *Store) SaveFacilitySetting(ctx context.Context, f catalog.FacilityAdditionSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO facility_addition_settings
		(id, facility_id, addition_code, enabled, status, effective_from, effective_to)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id, addition_code) DO UPDATE SET
			enabled = excluded.enabled,
			status = excluded.status,
			effective_from = excluded.effective_from,
			effective_to = excluded.effective_to
	`

	_, err := s.db.ExecContext(ctx, query,
		f.ID, f.FacilityID, f.AdditionCode, f.Enabled, string(f.Status),
		nullDatePtr(f.EffectiveFrom), nullDatePtr(f.EffectiveTo))
	return err
}

// FacilitySettings returns all preset settings for one facility.
func (s *Store) FacilitySettings(ctx context.Context, facilityID string) ([]catalog.FacilityAdditionSetting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, facility_id, addition_code, enabled, status, effective_from, effective_to
		 FROM facility_addition_settings WHERE facility_id = ? ORDER BY addition_code`,
		facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var settings []catalog.FacilityAdditionSetting
	for rows.Next() {
		var f catalog.FacilityAdditionSetting
		var status string
		var from, to sql.NullString
		if err := rows.Scan(&f.ID, &f.FacilityID, &f.AdditionCode, &f.Enabled, &status, &from, &to); err != nil {
			return nil, err
		}
		f.Status = catalog.SettingStatus(status)
		if from.Valid {
			if d, err := catalog.ParseDate(from.String); err == nil {
				f.EffectiveFrom = &d
			}
		}
		if to.Valid {
			if d, err := catalog.ParseDate(to.String); err == nil {
				f.EffectiveTo = &d
			}
		}
		settings = append(settings, f)
	}
	return settings, rows.Err()
}

// =============================================================================
// SERVICE CODES AND MASTERS
// =============================================================================

// SaveServiceCode upserts a statutory service code.
func (s *Store) SaveServiceCode(ctx context.Context, c billing.ServiceCode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO service_codes (id, code, name, category, base_units, description)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			category = excluded.category,
			base_units = excluded.base_units,
			description = excluded.description
	`

	_, err := s.db.ExecContext(ctx, query,
		c.ID, c.Code, c.Name, c.Category, c.BaseUnits, c.Description)
	return err
}

// ServiceCodes returns the full service-code catalog.
func (s *Store) ServiceCodes(ctx context.Context) ([]billing.ServiceCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, code, name, category, base_units, description FROM service_codes ORDER BY code")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []billing.ServiceCode
	for rows.Next() {
		var c billing.ServiceCode
		var description sql.NullString
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Category, &c.BaseUnits, &description); err != nil {
			return nil, err
		}
		c.Description = description.String
		codes = append(codes, c)
	}
	return codes, rows.Err()
}

// SaveFacility upserts a facility master row.
func (s *Store) SaveFacility(ctx context.Context, f billing.Facility) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO facilities (id, name, code, region_grade)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			code = excluded.code,
			region_grade = excluded.region_grade
	`

	_, err := s.db.ExecContext(ctx, query, f.ID, f.Name, f.Code, f.RegionGrade)
	return err
}

// Facility retrieves facility master data, or nil when unknown.
func (s *Store) Facility(ctx context.Context, id string) (*billing.Facility, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var f billing.Facility
	var code sql.NullString

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, code, region_grade FROM facilities WHERE id = ?",
		id,
	).Scan(&f.ID, &f.Name, &code, &f.RegionGrade)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	f.Code = code.String
	return &f, nil
}

// SaveChild upserts a child master row.
func (s *Store) SaveChild(ctx context.Context, c billing.Child) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO children (id, name, beneficiary_number, income_category)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			beneficiary_number = excluded.beneficiary_number,
			income_category = excluded.income_category
	`

	_, err := s.db.ExecContext(ctx, query, c.ID, c.Name, c.BeneficiaryNumber, c.IncomeCategory)
	return err
}

// ChildrenByID resolves child master data for the given IDs. Unknown IDs
// are simply absent from the result.
func (s *Store) ChildrenByID(ctx context.Context, ids []string) (map[string]billing.Child, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	children := make(map[string]billing.Child, len(ids))
	if len(ids) == 0 {
		return children, nil
	}

	placeholders := strings.Repeat("?,", len(ids)-1) + "?"
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, beneficiary_number, income_category FROM children WHERE id IN ("+placeholders+")",
		args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var c billing.Child
		var beneficiary, income sql.NullString
		if err := rows.Scan(&c.ID, &c.Name, &beneficiary, &income); err != nil {
			return nil, err
		}
		c.BeneficiaryNumber = beneficiary.String
		c.IncomeCategory = income.String
		children[c.ID] = c
	}
	return children, rows.Err()
}

// =============================================================================
// USAGE RECORDS
// =============================================================================

// SaveUsageRecord upserts one child/day attendance fact. The
// (facility, child, date) triple is unique; re-recording a day replaces
// the earlier fact.
func (s *Store) SaveUsageRecord(ctx context.Context, u billing.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	addonsJSON, _ := json.Marshal(u.AddonNames)

	query := `
		INSERT INTO usage_records
		(id, facility_id, child_id, service_date, status, planned_start, planned_end,
		 actual_start, actual_end, pickup, dropoff, addons_json, billing_target)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(facility_id, child_id, service_date) DO UPDATE SET
			status = excluded.status,
			planned_start = excluded.planned_start,
			planned_end = excluded.planned_end,
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			pickup = excluded.pickup,
			dropoff = excluded.dropoff,
			addons_json = excluded.addons_json,
			billing_target = excluded.billing_target
	`

	_, err := s.db.ExecContext(ctx, query,
		u.ID, u.FacilityID, u.ChildID, u.Date.String(), string(u.Status),
		u.PlannedStart, u.PlannedEnd, u.ActualStart, u.ActualEnd,
		u.Pickup, u.Dropoff, string(addonsJSON), u.BillingTarget)
	return err
}

// UsageForMonth returns all usage records for a facility and YYYY-MM
// period in date order.
func (s *Store) UsageForMonth(ctx context.Context, facilityID, yearMonth string) ([]billing.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, facility_id, child_id, service_date, status, planned_start, planned_end,
		       actual_start, actual_end, pickup, dropoff, addons_json, billing_target
		FROM usage_records
		WHERE facility_id = ? AND service_date LIKE ?
		ORDER BY service_date ASC, child_id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, facilityID, yearMonth+"-%")
	if err != nil {
		return nil, fmt.Errorf("failed to query usage records: %w", err)
	}
	defer rows.Close()

	var records []billing.UsageRecord
	for rows.Next() {
		var (
			u          billing.UsageRecord
			date       string
			status     string
			plannedS   sql.NullString
			plannedE   sql.NullString
			actualS    sql.NullString
			actualE    sql.NullString
			addonsJSON sql.NullString
		)
		if err := rows.Scan(&u.ID, &u.FacilityID, &u.ChildID, &date, &status,
			&plannedS, &plannedE, &actualS, &actualE,
			&u.Pickup, &u.Dropoff, &addonsJSON, &u.BillingTarget); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		if d, err := catalog.ParseDate(date); err == nil {
			u.Date = d
		}
		u.Status = billing.ServiceStatus(status)
		u.PlannedStart = plannedS.String
		u.PlannedEnd = plannedE.String
		u.ActualStart = actualS.String
		u.ActualEnd = actualE.String
		if addonsJSON.Valid && addonsJSON.String != "" {
			json.Unmarshal([]byte(addonsJSON.String), &u.AddonNames)
		}
		records = append(records, u)
	}
	return records, rows.Err()
}

// =============================================================================
// BILLING RECORDS
// =============================================================================

// DeleteDraftRecords removes draft records and their details for one
// facility/period. Confirmed and submitted records stay untouched.
func (s *Store) DeleteDraftRecords(ctx context.Context, facilityID, yearMonth string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		DELETE FROM billing_details WHERE record_id IN (
			SELECT id FROM billing_records
			WHERE facility_id = ? AND year_month = ? AND status = 'draft'
		)`, facilityID, yearMonth)
	if err != nil {
		return fmt.Errorf("failed to delete draft details: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"DELETE FROM billing_records WHERE facility_id = ? AND year_month = ? AND status = 'draft'",
		facilityID, yearMonth)
	if err != nil {
		return fmt.Errorf("failed to delete draft records: %w", err)
	}

	return tx.Commit()
}

// InsertRecord persists one record and its details in one transaction.
func (s *Store) InsertRecord(ctx context.Context, rec billing.BillingRecord, details []billing.BillingDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO billing_records
		(id, facility_id, child_id, year_month, service_type, total_units, unit_price,
		 total_amount, copay_amount, insurance_amount, upper_limit, status, notes,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.FacilityID, rec.ChildID, rec.YearMonth, rec.ServiceType,
		rec.TotalUnits, rec.UnitPrice, rec.TotalAmount, rec.CopayAmount,
		rec.InsuranceAmount, rec.UpperLimit, string(rec.Status), rec.Notes,
		rec.CreatedAt.Format(time.RFC3339), rec.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("failed to insert billing record: %w", err)
	}

	for _, d := range details {
		additionsJSON, _ := json.Marshal(d.Additions)
		_, err = tx.ExecContext(ctx, `
			INSERT INTO billing_details
			(id, record_id, service_date, service_code, unit_count, is_absence, absence_type, additions_json)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			d.ID, d.RecordID, d.ServiceDate.String(), d.ServiceCode,
			d.UnitCount, d.IsAbsence, d.AbsenceType, string(additionsJSON))
		if err != nil {
			return fmt.Errorf("failed to insert billing detail: %w", err)
		}
	}

	return tx.Commit()
}

// ConfirmDrafts transitions the period's draft records to confirmed,
// returning how many changed. No drafts is a no-op.
func (s *Store) ConfirmDrafts(ctx context.Context, facilityID, yearMonth string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE billing_records SET status = 'confirmed', updated_at = ?
		WHERE facility_id = ? AND year_month = ? AND status = 'draft'`,
		time.Now().UTC().Format(time.RFC3339), facilityID, yearMonth)
	if err != nil {
		return 0, fmt.Errorf("failed to confirm drafts: %w", err)
	}

	n, err := res.RowsAffected()
	return int(n), err
}

// RecordsForMonth returns the period's billing records ordered by child.
func (s *Store) RecordsForMonth(ctx context.Context, facilityID, yearMonth string) ([]billing.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := recordColumns + `
		FROM billing_records r
		LEFT JOIN children c ON c.id = r.child_id
		WHERE r.facility_id = ? AND r.year_month = ?
		ORDER BY c.name ASC, r.child_id ASC
	`

	return s.queryRecords(ctx, query, facilityID, yearMonth)
}

// GetRecord retrieves one billing record by ID, or nil when absent.
func (s *Store) GetRecord(ctx context.Context, id string) (*billing.BillingRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.queryRecords(ctx, recordColumns+`
		FROM billing_records r
		LEFT JOIN children c ON c.id = r.child_id
		WHERE r.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// UpdateRecordNotes amends the operator notes on a draft record.
// Confirmed and submitted records are immutable and yield
// ErrRecordNotDraft.
func (s *Store) UpdateRecordNotes(ctx context.Context, id, notes string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE billing_records SET notes = ?, updated_at = ?
		WHERE id = ? AND status = 'draft'`,
		notes, time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("record %s: %w", id, ErrRecordNotDraft)
	}
	return nil
}

const recordColumns = `SELECT r.id, r.facility_id, r.child_id, r.year_month, r.service_type,
	r.total_units, r.unit_price, r.total_amount, r.copay_amount, r.insurance_amount,
	r.upper_limit, r.status, r.notes, r.created_at, r.updated_at,
	COALESCE(c.name, ''), COALESCE(c.beneficiary_number, '')`

func (s *Store) queryRecords(ctx context.Context, query string, args ...any) ([]billing.BillingRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing records: %w", err)
	}
	defer rows.Close()

	var records []billing.BillingRecord
	for rows.Next() {
		var (
			r                  billing.BillingRecord
			status             string
			notes              sql.NullString
			createdAt          string
			updatedAt          string
		)
		if err := rows.Scan(&r.ID, &r.FacilityID, &r.ChildID, &r.YearMonth, &r.ServiceType,
			&r.TotalUnits, &r.UnitPrice, &r.TotalAmount, &r.CopayAmount, &r.InsuranceAmount,
			&r.UpperLimit, &status, &notes, &createdAt, &updatedAt,
			&r.ChildName, &r.BeneficiaryNumber); err != nil {
			return nil, fmt.Errorf("failed to scan billing record: %w", err)
		}
		r.Status = billing.BillingStatus(status)
		r.Notes = notes.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		r.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// DetailsForRecord returns a record's per-day lines in date order.
func (s *Store) DetailsForRecord(ctx context.Context, recordID string) ([]billing.BillingDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, service_date, service_code, unit_count, is_absence, absence_type, additions_json
		FROM billing_details
		WHERE record_id = ?
		ORDER BY service_date ASC`, recordID)
	if err != nil {
		return nil, fmt.Errorf("failed to query billing details: %w", err)
	}
	defer rows.Close()

	var details []billing.BillingDetail
	for rows.Next() {
		var (
			d             billing.BillingDetail
			date          string
			absenceType   sql.NullString
			additionsJSON sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.RecordID, &date, &d.ServiceCode,
			&d.UnitCount, &d.IsAbsence, &absenceType, &additionsJSON); err != nil {
			return nil, fmt.Errorf("failed to scan billing detail: %w", err)
		}
		if parsed, err := catalog.ParseDate(date); err == nil {
			d.ServiceDate = parsed
		}
		d.AbsenceType = absenceType.String
		if additionsJSON.Valid && additionsJSON.String != "" {
			json.Unmarshal([]byte(additionsJSON.String), &d.Additions)
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"billing_details", "billing_records", "usage_records",
		"facility_addition_settings", "addition_versions", "law_revisions",
		"additions", "service_codes", "children", "facilities",
	}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// Helper functions

func nullIntPtr(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func nullDecimalPtr(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func decimalPtr(n sql.NullString) *decimal.Decimal {
	if !n.Valid || n.String == "" {
		return nil
	}
	d, err := decimal.NewFromString(n.String)
	if err != nil {
		return nil
	}
	return &d
}

func nullDatePtr(d *catalog.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
