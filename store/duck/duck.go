// Package duck implements a filter store on DuckDB.
package duck

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/pkg/errors"

	nt "sieve/entity"
)

// Config configures a Duck.
type Config struct {
	// Path to the database file, empty for in-memory.
	Path string `yaml:"path"`
}

// Duck is a filter store.
type Duck struct {
	db     *sql.DB
	logger nt.Logger
}

// New opens the database and ensures its tables.
func (cfg *Config) New(ctx context.Context, lgr nt.Logger) (dk *Duck, err error) {

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		err = errors.Wrapf(err, "failed to open duck at %q", cfg.Path)
		return
	}

	if lgr == nil {
		lgr = nt.Quiet{}
	}
	dk = &Duck{
		db:     db,
		logger: lgr,
	}

	err = dk.createTables(ctx)
	if err != nil {
		db.Close()
		dk = nil
	}
	return
}

func (dk *Duck) Close() {
	dk.db.Close()
}

// Fetch a filter and its instances.
func (dk *Duck) Fetch(ctx context.Context, id string) (flt nt.Filter, err error) {

	row := dk.db.QueryRowContext(ctx, selectFilter+" WHERE id = ?", id)
	flt, err = scanFilter(row)
	if errors.Is(err, sql.ErrNoRows) {
		err = errors.Errorf("filter %s not found", id)
		return
	}
	if err != nil {
		err = errors.Wrapf(err, "failed to fetch filter %s", id)
		return
	}

	flt.Instances, err = dk.instances(ctx, id)
	return
}

// List filters with status, all of them when status is empty.
func (dk *Duck) List(ctx context.Context, status nt.Status) (flts []nt.Filter, err error) {

	query := selectFilter
	args := []any{}
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY name, id"

	rows, err := dk.db.QueryContext(ctx, query, args...)
	if err != nil {
		err = errors.Wrapf(err, "failed to query filters")
		return
	}
	defer rows.Close()

	for rows.Next() {
		var flt nt.Filter
		flt, err = scanFilter(rows)
		if err != nil {
			err = errors.Wrapf(err, "failed to scan filter")
			return
		}
		flts = append(flts, flt)
	}

	err = rows.Err()
	err = errors.Wrapf(err, "error iterating filters")
	return
}

// Create a filter, assigning a new id unless one is given.
// Instances are persisted separately.
func (dk *Duck) Create(ctx context.Context, flt nt.Filter) (created nt.Filter, err error) {

	if flt.Id == "" {
		flt.Id = uuid.NewString()
	}
	flt.Instances = nil

	args, err := filterArgs(flt)
	if err != nil {
		return
	}

	_, err = dk.db.ExecContext(ctx, `
		INSERT INTO filters (name, type, definition, ui_default, version, status, id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		err = errors.Wrapf(err, "failed to insert filter %q", flt.Name)
		return
	}

	dk.logger.Info(ctx, "filter created", "filter_id", flt.Id, "name", flt.Name)
	created = flt
	return
}

// Update a filter's own fields.
func (dk *Duck) Update(ctx context.Context, flt nt.Filter) (updated nt.Filter, err error) {

	args, err := filterArgs(flt)
	if err != nil {
		return
	}

	result, err := dk.db.ExecContext(ctx, `
		UPDATE filters
		SET name = ?, type = ?, definition = ?, ui_default = ?, version = ?, status = ?
		WHERE id = ?`, args...)
	err = affected(result, err, "filter", flt.Id)
	if err != nil {
		return
	}

	flt.Instances = nil
	updated = flt
	return
}

// CreateInstance of a filter, assigning a new id.
func (dk *Duck) CreateInstance(ctx context.Context, filterId string, inst nt.Instance) (created nt.Instance, err error) {
	return createInstance(ctx, dk.db, filterId, inst)
}

// UpdateInstance of a filter.
func (dk *Duck) UpdateInstance(ctx context.Context, inst nt.Instance) (updated nt.Instance, err error) {
	return updateInstance(ctx, dk.db, inst)
}

// UpsertInstances creates or updates instances of a filter in a single
// transaction, leaving none applied when any fails.
func (dk *Duck) UpsertInstances(ctx context.Context, filterId string, insts []nt.Instance) (upserted []nt.Instance, err error) {

	tx, err := dk.db.BeginTx(ctx, nil)
	if err != nil {
		err = errors.Wrapf(err, "failed to begin")
		return
	}
	defer func() {
		if err != nil {
			tx.Rollback()
			upserted = nil
		}
	}()

	for _, inst := range insts {

		var saved nt.Instance
		if inst.Id == "" {
			saved, err = createInstance(ctx, tx, filterId, inst)
		} else {
			inst.FilterId = filterId
			saved, err = updateInstance(ctx, tx, inst)
		}
		if err != nil {
			return
		}
		upserted = append(upserted, saved)
	}

	err = tx.Commit()
	err = errors.Wrapf(err, "failed to commit instances of %s", filterId)
	return
}

// unexported

const selectFilter = `SELECT id, name, type, definition, ui_default, version, status FROM filters`

// execer is satisfied by both db and tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type scanner interface {
	Scan(dest ...any) error
}

func (dk *Duck) createTables(ctx context.Context) (err error) {

	for _, stmt := range []string{`
		CREATE TABLE IF NOT EXISTS filters (
			id         VARCHAR PRIMARY KEY,
			name       VARCHAR NOT NULL,
			type       VARCHAR NOT NULL,
			definition VARCHAR,
			ui_default VARCHAR,
			version    INTEGER NOT NULL,
			status     VARCHAR NOT NULL
		)`, `
		CREATE TABLE IF NOT EXISTS filter_instances (
			id          VARCHAR PRIMARY KEY,
			filter_id   VARCHAR NOT NULL,
			target_type VARCHAR NOT NULL,
			target_ref  VARCHAR NOT NULL,
			placement   VARCHAR NOT NULL,
			is_active   BOOLEAN NOT NULL,
			ui_override VARCHAR
		)`,
	} {
		_, err = dk.db.ExecContext(ctx, stmt)
		if err != nil {
			err = errors.Wrapf(err, "failed to create table")
			return
		}
	}
	return
}

func (dk *Duck) instances(ctx context.Context, filterId string) (insts []nt.Instance, err error) {

	rows, err := dk.db.QueryContext(ctx, `
		SELECT id, filter_id, target_type, target_ref, placement, is_active, ui_override
		FROM filter_instances
		WHERE filter_id = ?
		ORDER BY target_ref, id`, filterId)
	if err != nil {
		err = errors.Wrapf(err, "failed to query instances of %s", filterId)
		return
	}
	defer rows.Close()

	for rows.Next() {
		var inst nt.Instance
		var override sql.NullString
		err = rows.Scan(&inst.Id, &inst.FilterId, &inst.TargetType, &inst.TargetRef, &inst.Placement, &inst.IsActive, &override)
		if err != nil {
			err = errors.Wrapf(err, "failed to scan instance")
			return
		}
		inst.UIOverride, err = decodeUI(override)
		if err != nil {
			return
		}
		insts = append(insts, inst)
	}

	err = rows.Err()
	err = errors.Wrapf(err, "error iterating instances")
	return
}

func createInstance(ctx context.Context, ex execer, filterId string, inst nt.Instance) (created nt.Instance, err error) {

	inst.Id = uuid.NewString()
	inst.FilterId = filterId

	args, err := instanceArgs(inst)
	if err != nil {
		return
	}

	_, err = ex.ExecContext(ctx, `
		INSERT INTO filter_instances (filter_id, target_type, target_ref, placement, is_active, ui_override, id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`, args...)
	if err != nil {
		err = errors.Wrapf(err, "failed to insert instance for %s", inst.TargetRef)
		return
	}

	created = inst
	return
}

func updateInstance(ctx context.Context, ex execer, inst nt.Instance) (updated nt.Instance, err error) {

	args, err := instanceArgs(inst)
	if err != nil {
		return
	}

	// filter_id stays put, an instance does not move between filters
	result, err := ex.ExecContext(ctx, `
		UPDATE filter_instances
		SET target_type = ?, target_ref = ?, placement = ?, is_active = ?, ui_override = ?
		WHERE id = ?`, args[1:]...)
	err = affected(result, err, "instance", inst.Id)
	if err != nil {
		return
	}

	updated = inst
	return
}

func filterArgs(flt nt.Filter) (args []any, err error) {

	definition, err := encode(flt.Definition)
	if err != nil {
		return
	}
	uiDefault, err := encode(flt.UIDefault)
	if err != nil {
		return
	}

	args = []any{flt.Name, flt.Type, definition, uiDefault, flt.Version, string(flt.Status), flt.Id}
	return
}

func instanceArgs(inst nt.Instance) (args []any, err error) {

	override, err := encode(inst.UIOverride)
	if err != nil {
		return
	}

	args = []any{inst.FilterId, inst.TargetType, inst.TargetRef, inst.Placement, inst.IsActive, override, inst.Id}
	return
}

func scanFilter(row scanner) (flt nt.Filter, err error) {

	var definition, uiDefault sql.NullString
	var status string

	err = row.Scan(&flt.Id, &flt.Name, &flt.Type, &definition, &uiDefault, &flt.Version, &status)
	if err != nil {
		return
	}
	flt.Status = nt.Status(status)

	if definition.Valid {
		flt.Definition = &nt.Definition{}
		err = json.Unmarshal([]byte(definition.String), flt.Definition)
		if err != nil {
			err = errors.Wrapf(err, "failed to decode definition of %s", flt.Id)
			return
		}
	}

	flt.UIDefault, err = decodeUI(uiDefault)
	return
}

// encode renders a nil pointer as sql null and anything else as json text.
func encode[T any](val *T) (text sql.NullString, err error) {

	if val == nil {
		return
	}

	data, err := json.Marshal(val)
	if err != nil {
		err = errors.Wrapf(err, "failed to encode %T", val)
		return
	}

	text = sql.NullString{String: string(data), Valid: true}
	return
}

func decodeUI(text sql.NullString) (cfg *nt.UIConfig, err error) {

	if !text.Valid || strings.TrimSpace(text.String) == "" {
		return
	}

	cfg = &nt.UIConfig{}
	err = json.Unmarshal([]byte(text.String), cfg)
	err = errors.Wrapf(err, "failed to decode ui config")
	return
}

func affected(result sql.Result, err error, what, id string) error {

	if err != nil {
		return errors.Wrapf(err, "failed to update %s %s", what, id)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "failed to count updated rows")
	}
	if count == 0 {
		return errors.Errorf("%s %s not found", what, id)
	}
	return nil
}
