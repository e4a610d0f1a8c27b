// Package lake wraps DuckDB + DuckLake as the pipeline's storage engine.
// It owns every SQL statement the pipeline issues. Identifiers that reach
// SQL text are fixed, validated constants; file URLs and other values
// travel as bound parameters.
package lake

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"regexp"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// S3Credentials configure the DuckDB S3 secret for s3:// ingestion.
type S3Credentials struct {
	KeyID  string
	Secret string
	Region string
}

// Options configure the DuckLake catalog connection.
type Options struct {
	// CatalogPath is the ATTACH target, e.g. "ducklake:commoncrawl.ducklake".
	CatalogPath string

	// CatalogName is the attached catalog alias, e.g. "commoncrawl".
	CatalogName string

	// DataPath is the DuckLake DATA_PATH. This pipeline only registers
	// external parquet files, so the path stays empty on disk.
	DataPath string

	// S3, when non-nil, is registered as a DuckDB secret before attach.
	S3 *S3Credentials
}

// DB is a DuckLake catalog connection implementing the pipeline's storage
// operations. Not safe for concurrent pipeline runs; the manifest is
// treated as append-only.
type DB struct {
	db      *sql.DB
	catalog string
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Open opens an in-process DuckDB, loads the ducklake and httpfs
// extensions, applies the HTTP reliability settings, registers S3
// credentials when provided, and attaches the DuckLake catalog (creating
// it on first use).
func Open(ctx context.Context, opts Options) (*DB, error) {
	if !identPattern.MatchString(opts.CatalogName) {
		return nil, fmt.Errorf("invalid catalog name %q", opts.CatalogName)
	}

	sqlDB, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}
	d := &DB{db: sqlDB, catalog: opts.CatalogName}

	for _, stmt := range []string{
		"INSTALL ducklake",
		"INSTALL httpfs",
		"LOAD ducklake",
		"LOAD httpfs",
	} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			d.db.Close()
			return nil, fmt.Errorf("extension setup (%s): %w", stmt, err)
		}
	}

	// Retry settings for flaky remote reads during table seeding.
	for _, stmt := range []string{
		"SET http_retries = 1000",
		"SET http_retry_backoff = 6",
		"SET http_retry_wait_ms = 500",
	} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			log.Printf("[lake] HTTP setting skipped: %s (%v)", stmt, err)
		}
	}

	if opts.S3 != nil {
		if err := d.createS3Secret(ctx, opts.S3); err != nil {
			d.db.Close()
			return nil, err
		}
	}

	if err := d.attach(ctx, opts); err != nil {
		d.db.Close()
		return nil, err
	}

	log.Printf("[lake] Attached DuckLake catalog %s (%s)", opts.CatalogName, opts.CatalogPath)
	return d, nil
}

// Close releases the DuckDB connection.
func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) createS3Secret(ctx context.Context, creds *S3Credentials) error {
	region := creds.Region
	if region == "" {
		region = "us-east-1"
	}
	// CREATE SECRET takes no bound parameters; values are escaped string
	// literals.
	stmt := fmt.Sprintf(`
		CREATE SECRET IF NOT EXISTS commoncrawl_s3 (
			TYPE S3,
			KEY_ID '%s',
			SECRET '%s',
			REGION '%s'
		)`,
		escapeLiteral(creds.KeyID), escapeLiteral(creds.Secret), escapeLiteral(region))
	if _, err := d.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("failed to create S3 secret: %w", err)
	}
	log.Println("[lake] S3 credentials configured")
	return nil
}

func (d *DB) attach(ctx context.Context, opts Options) error {
	attachSQL := fmt.Sprintf("ATTACH '%s' AS %s", escapeLiteral(opts.CatalogPath), d.catalog)
	if opts.DataPath != "" {
		attachSQL = fmt.Sprintf("ATTACH '%s' AS %s (DATA_PATH '%s')",
			escapeLiteral(opts.CatalogPath), d.catalog, escapeLiteral(opts.DataPath))
	}

	if _, err := d.db.ExecContext(ctx, attachSQL); err != nil {
		errStr := err.Error()
		if !strings.Contains(errStr, "database does not exist") && !strings.Contains(errStr, "Cannot open database") {
			return fmt.Errorf("failed to attach DuckLake catalog: %w", err)
		}
		// First-time initialization: allow catalog creation.
		createSQL := fmt.Sprintf("ATTACH '%s' AS %s (TYPE ducklake)",
			escapeLiteral(opts.CatalogPath), d.catalog)
		if opts.DataPath != "" {
			createSQL = fmt.Sprintf("ATTACH '%s' AS %s (TYPE ducklake, DATA_PATH '%s')",
				escapeLiteral(opts.CatalogPath), d.catalog, escapeLiteral(opts.DataPath))
		}
		if _, err := d.db.ExecContext(ctx, createSQL); err != nil {
			return fmt.Errorf("failed to create DuckLake catalog: %w", err)
		}
		log.Println("[lake] Created new DuckLake catalog")
	}
	return nil
}

// TableExists reports whether a table is present in the attached catalog.
func (d *DB) TableExists(ctx context.Context, table string) (bool, error) {
	if err := checkIdent(table); err != nil {
		return false, err
	}
	var n int
	err := d.db.QueryRowContext(ctx,
		"SELECT count(*) FROM duckdb_tables() WHERE database_name = ? AND table_name = ?",
		d.catalog, table).Scan(&n)
	if err != nil {
		return false, opErr("table_exists", table, "", err)
	}
	return n > 0, nil
}

// ListDataFiles returns the absorbed-file manifest for a table: the set of
// data file paths DuckLake already tracks. A table that does not exist yet
// has an empty manifest.
func (d *DB) ListDataFiles(ctx context.Context, table string) (map[string]struct{}, error) {
	if err := checkIdent(table); err != nil {
		return nil, err
	}
	exists, err := d.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	files := make(map[string]struct{})
	if !exists {
		return files, nil
	}

	query := fmt.Sprintf("SELECT data_file FROM ducklake_list_files('%s', '%s')", d.catalog, table)
	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, opErr("list_files", table, "", err)
	}
	defer rows.Close()

	for rows.Next() {
		var path string
		if err := rows.Scan(&path); err != nil {
			return nil, opErr("list_files", table, "", err)
		}
		files[path] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, opErr("list_files", table, "", err)
	}
	return files, nil
}

// CreateTableFromFile creates a zero-row table whose schema is taken from
// the sample parquet file. Idempotent via IF NOT EXISTS.
func (d *DB) CreateTableFromFile(ctx context.Context, table, sampleURL string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	query := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s AS FROM read_parquet(?) WITH NO DATA",
		d.catalog, table)
	if _, err := d.db.ExecContext(ctx, query, sampleURL); err != nil {
		return opErr("create_table", table, sampleURL, err)
	}
	log.Printf("[lake] Table ready: %s.%s (schema from %s)", d.catalog, table, sampleURL)
	return nil
}

// AddDataFile registers one remote parquet file with the destination
// table. allowMissing tolerates files the historical path lists reference
// but that no longer exist upstream.
func (d *DB) AddDataFile(ctx context.Context, table, fileURL string, allowMissing bool) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	var query string
	if allowMissing {
		query = fmt.Sprintf(
			"CALL ducklake_add_data_files('%s', '%s', ?, allow_missing => true)",
			d.catalog, table)
	} else {
		query = fmt.Sprintf(
			"CALL ducklake_add_data_files('%s', '%s', ?)",
			d.catalog, table)
	}
	if _, err := d.db.ExecContext(ctx, query, fileURL); err != nil {
		return opErr("add_file", table, fileURL, err)
	}
	return nil
}

// AddColumnIfAbsent adds a nullable column unless a column of that name
// (case-insensitive) already exists. Column-already-exists is success.
func (d *DB) AddColumnIfAbsent(ctx context.Context, table, column, columnType string) error {
	if err := checkIdent(table); err != nil {
		return err
	}
	if err := checkIdent(column); err != nil {
		return err
	}
	if !identPattern.MatchString(strings.ReplaceAll(columnType, " ", "_")) {
		return fmt.Errorf("invalid column type %q", columnType)
	}

	exists, err := d.columnExists(ctx, table, column)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	alter := fmt.Sprintf("ALTER TABLE %s.%s ADD COLUMN %s %s", d.catalog, table, column, columnType)
	if _, alterErr := d.db.ExecContext(ctx, alter); alterErr != nil {
		// Lost a race with nobody, or a stale catalog listing: re-check
		// before treating the failure as fatal.
		if exists, err := d.columnExists(ctx, table, column); err == nil && exists {
			return nil
		}
		return opErr("add_column", table, column, alterErr)
	}
	log.Printf("[lake] Added column %s.%s.%s %s", d.catalog, table, column, columnType)
	return nil
}

func (d *DB) columnExists(ctx context.Context, table, column string) (bool, error) {
	var n int
	err := d.db.QueryRowContext(ctx, `
		SELECT count(*)
		FROM duckdb_columns()
		WHERE database_name = ? AND table_name = ? AND lower(column_name) = lower(?)`,
		d.catalog, table, column).Scan(&n)
	if err != nil {
		return false, opErr("describe", table, column, err)
	}
	return n > 0, nil
}

// ReplaceArchiveView publishes the unified read surface: the new table's
// rows unioned by column name with the old table's rows, the old epoch's
// naive timestamp column reinterpreted as UTC.
func (d *DB) ReplaceArchiveView(ctx context.Context, view, newTable, oldTable, tsColumn string) error {
	for _, ident := range []string{view, newTable, oldTable, tsColumn} {
		if err := checkIdent(ident); err != nil {
			return err
		}
	}
	query := fmt.Sprintf(`
		CREATE OR REPLACE VIEW %[1]s.%[2]s AS
		SELECT *
		FROM %[1]s.%[3]s
		UNION ALL BY NAME
		SELECT * REPLACE (%[5]s::TIMESTAMPTZ AS %[5]s)
		FROM %[1]s.%[4]s`,
		d.catalog, view, newTable, oldTable, tsColumn)
	if _, err := d.db.ExecContext(ctx, query); err != nil {
		return opErr("replace_view", view, "", err)
	}
	log.Printf("[lake] View ready: %s.%s", d.catalog, view)
	return nil
}

func checkIdent(s string) error {
	if !identPattern.MatchString(s) {
		return fmt.Errorf("invalid identifier %q", s)
	}
	return nil
}

func escapeLiteral(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
