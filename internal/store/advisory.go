package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ErrDuplicateAdvisory is returned (wrapped) when an advisory id is already
// present in the store.
var ErrDuplicateAdvisory = errors.New("duplicate advisory id")

// AdvisoryRow is one row of the advisories table. Ecosystems and CWEs hold
// JSON arrays; the remaining text columns are copied from the document.
type AdvisoryRow struct {
	GHSA       string
	Modified   string
	Published  sql.NullString
	Withdrawn  sql.NullString
	CVE        sql.NullString
	Ecosystems string
	Summary    sql.NullString
	Details    sql.NullString
	Severity   sql.NullString
	CWEs       sql.NullString
}

// AffectedPackageRow is one row of the affected_packages table. GHSA refers
// to advisories.ghsa but is not enforced as a foreign key. Ranges and Versions
// hold JSON arrays, NULL when the document had none.
type AffectedPackageRow struct {
	GHSA      string
	Name      string
	Ecosystem string
	Ranges    sql.NullString
	Versions  sql.NullString
}

// Record is one advisory and its affected packages, written together.
type Record struct {
	Advisory AdvisoryRow
	Packages []AffectedPackageRow
}

const insertAdvisory = `
INSERT INTO advisories (
    ghsa, modified, published, withdrawn, cve, ecosystems, summary, details, severity, cwes
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertAffectedPackage = `
INSERT INTO affected_packages (ghsa, name, ecosystem, ranges, versions)
VALUES (?, ?, ?, ?, ?)`

// WriteBatch inserts every record in one transaction: one advisories row per
// record plus one affected_packages row per package. Either the whole batch
// is committed or none of it is; any insert error rolls the batch back and is
// returned. Concurrent calls are serialized.
func (s *Store) WriteBatch(ctx context.Context, batch []Record) error {
	if len(batch) == 0 {
		return nil
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		advStmt, err := tx.PrepareContext(ctx, insertAdvisory)
		if err != nil {
			return fmt.Errorf("prepare advisory insert: %w", err)
		}
		defer advStmt.Close() //nolint:errcheck

		pkgStmt, err := tx.PrepareContext(ctx, insertAffectedPackage)
		if err != nil {
			return fmt.Errorf("prepare affected package insert: %w", err)
		}
		defer pkgStmt.Close() //nolint:errcheck

		for i := range batch {
			if err := insertRecord(ctx, advStmt, pkgStmt, &batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: write batch of %d: %w", len(batch), err)
	}
	return nil
}

func insertRecord(ctx context.Context, advStmt, pkgStmt *sql.Stmt, rec *Record) error {
	a := rec.Advisory
	if _, err := advStmt.ExecContext(ctx,
		a.GHSA, a.Modified, a.Published, a.Withdrawn, a.CVE,
		a.Ecosystems, a.Summary, a.Details, a.Severity, a.CWEs,
	); err != nil {
		if isConstraintViolation(err) {
			return fmt.Errorf("insert advisory %s: %w: %w", a.GHSA, ErrDuplicateAdvisory, err)
		}
		return fmt.Errorf("insert advisory %s: %w", a.GHSA, err)
	}

	for _, p := range rec.Packages {
		if _, err := pkgStmt.ExecContext(ctx,
			p.GHSA, p.Name, p.Ecosystem, p.Ranges, p.Versions,
		); err != nil {
			return fmt.Errorf("insert affected package %s/%s for %s: %w", p.Ecosystem, p.Name, p.GHSA, err)
		}
	}
	return nil
}

// isConstraintViolation reports whether err is a SQLite constraint error. On
// the advisories insert the only reachable constraint is the ghsa primary key.
// The primary result code is compared so this holds with or without extended
// result codes enabled.
func isConstraintViolation(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
}

// Read helpers below build their SQL with squirrel. Its default "?"
// placeholder format is what SQLite expects.

var (
	advisoryColumns = []string{
		"ghsa", "modified", "published", "withdrawn", "cve",
		"ecosystems", "summary", "details", "severity", "cwes",
	}
	affectedPackageColumns = []string{"ghsa", "name", "ecosystem", "ranges", "versions"}
)

// CountAdvisories returns the number of rows in advisories.
func (s *Store) CountAdvisories(ctx context.Context) (int, error) {
	return s.count(ctx, "advisories")
}

// CountAffectedPackages returns the number of rows in affected_packages.
func (s *Store) CountAffectedPackages(ctx context.Context) (int, error) {
	return s.count(ctx, "affected_packages")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	query, args, err := sq.Select("COUNT(*)").From(table).ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// GetAdvisory returns the advisory row for ghsa, or (nil, nil) if there is
// none.
func (s *Store) GetAdvisory(ctx context.Context, ghsa string) (*AdvisoryRow, error) {
	query, args, err := sq.Select(advisoryColumns...).
		From("advisories").
		Where(sq.Eq{"ghsa": ghsa}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build advisory query: %w", err)
	}

	var a AdvisoryRow
	err = s.db.QueryRowContext(ctx, query, args...).Scan(
		&a.GHSA, &a.Modified, &a.Published, &a.Withdrawn, &a.CVE,
		&a.Ecosystems, &a.Summary, &a.Details, &a.Severity, &a.CWEs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get advisory %s: %w", ghsa, err)
	}
	return &a, nil
}

// PackageFilter narrows FindAffectedPackages. Empty fields match anything.
type PackageFilter struct {
	GHSA      string
	Ecosystem string
	Name      string
}

func (f PackageFilter) where() sq.Eq {
	eq := sq.Eq{}
	if f.GHSA != "" {
		eq["ghsa"] = f.GHSA
	}
	if f.Ecosystem != "" {
		eq["ecosystem"] = f.Ecosystem
	}
	if f.Name != "" {
		eq["name"] = f.Name
	}
	return eq
}

// AffectedPackages returns the affected_packages rows for ghsa in insertion
// order.
func (s *Store) AffectedPackages(ctx context.Context, ghsa string) ([]AffectedPackageRow, error) {
	return s.FindAffectedPackages(ctx, PackageFilter{GHSA: ghsa})
}

// FindAffectedPackages returns the affected_packages rows matching f in
// insertion order.
func (s *Store) FindAffectedPackages(ctx context.Context, f PackageFilter) ([]AffectedPackageRow, error) {
	query, args, err := sq.Select(affectedPackageColumns...).
		From("affected_packages").
		Where(f.where()).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build affected packages query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find affected packages: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []AffectedPackageRow
	for rows.Next() {
		var p AffectedPackageRow
		if err := rows.Scan(&p.GHSA, &p.Name, &p.Ecosystem, &p.Ranges, &p.Versions); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// EcosystemCounts returns the number of affected_packages rows per ecosystem.
func (s *Store) EcosystemCounts(ctx context.Context) (map[string]int, error) {
	query, args, err := sq.Select("ecosystem", "COUNT(*)").
		From("affected_packages").
		GroupBy("ecosystem").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ecosystem counts query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ecosystem counts: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	counts := make(map[string]int)
	for rows.Next() {
		var (
			eco string
			n   int
		)
		if err := rows.Scan(&eco, &n); err != nil {
			return nil, err
		}
		counts[eco] = n
	}
	return counts, rows.Err()
}
