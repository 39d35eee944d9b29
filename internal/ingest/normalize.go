package ingest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"

	"github.com/hmarr/advisories-analysis/internal/feed/osv"
	"github.com/hmarr/advisories-analysis/internal/store"
)

// NormalizeError reports an advisory whose derived values could not be
// encoded. Only that advisory is skipped; the rest of its batch is written.
type NormalizeError struct {
	ID  string
	Err error
}

func (e *NormalizeError) Error() string {
	return fmt.Sprintf("normalize advisory %s: %v", e.ID, e.Err)
}

func (e *NormalizeError) Unwrap() error { return e.Err }

// Normalize derives the rows stored for adv: one advisories row and one
// affected_packages row per affected entry. It is pure, and the ecosystem set
// does not depend on the order of the affected entries.
func Normalize(adv *osv.Advisory) (store.Record, error) {
	ecosystems, err := json.Marshal(EcosystemSet(adv.Affected))
	if err != nil {
		return store.Record{}, &NormalizeError{ID: adv.ID, Err: fmt.Errorf("ecosystems: %w", err)}
	}

	row := store.AdvisoryRow{
		GHSA:       adv.ID,
		Modified:   adv.Modified,
		Published:  nullString(adv.Published),
		Withdrawn:  nullString(adv.Withdrawn),
		CVE:        nullString(adv.CVE()),
		Ecosystems: string(ecosystems),
		Summary:    nullString(adv.Summary),
		Details:    nullString(adv.Details),
	}
	if ds := adv.DatabaseSpecific; ds != nil {
		row.Severity = nullString(ds.Severity)
		if row.CWEs, err = jsonText(ds.CWEIDs); err != nil {
			return store.Record{}, &NormalizeError{ID: adv.ID, Err: fmt.Errorf("cwe ids: %w", err)}
		}
	}

	rec := store.Record{Advisory: row}
	if len(adv.Affected) > 0 {
		rec.Packages = make([]store.AffectedPackageRow, 0, len(adv.Affected))
	}
	for _, aff := range adv.Affected {
		ranges, err := jsonText(aff.Ranges)
		if err != nil {
			return store.Record{}, &NormalizeError{ID: adv.ID, Err: fmt.Errorf("ranges of %s: %w", aff.Package.Name, err)}
		}
		versions, err := jsonText(aff.Versions)
		if err != nil {
			return store.Record{}, &NormalizeError{ID: adv.ID, Err: fmt.Errorf("versions of %s: %w", aff.Package.Name, err)}
		}
		rec.Packages = append(rec.Packages, store.AffectedPackageRow{
			GHSA:      adv.ID,
			Name:      aff.Package.Name,
			Ecosystem: aff.Package.Ecosystem.String(),
			Ranges:    ranges,
			Versions:  versions,
		})
	}
	return rec, nil
}

// EcosystemSet returns the distinct ecosystems of affected, sorted. The
// result is never nil so it encodes as a JSON array.
func EcosystemSet(affected []osv.Affected) []osv.Ecosystem {
	set := make([]osv.Ecosystem, 0, len(affected))
	for _, a := range affected {
		if !slices.Contains(set, a.Package.Ecosystem) {
			set = append(set, a.Package.Ecosystem)
		}
	}
	slices.Sort(set)
	return set
}

// jsonText encodes v as JSON text, or NULL when v is nil (absent from the
// document). An empty, non-nil slice encodes as "[]".
func jsonText[T any](v []T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
