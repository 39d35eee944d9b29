package ingest

import (
	"database/sql"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmarr/advisories-analysis/internal/feed/osv"
)

func ptr[T any](v T) *T { return &v }

func affected(eco osv.Ecosystem, name string) osv.Affected {
	return osv.Affected{Package: osv.Package{Ecosystem: eco, Name: name}}
}

func TestNormalizeFullAdvisory(t *testing.T) {
	t.Parallel()

	adv := &osv.Advisory{
		ID:        "GHSA-aaaa-bbbb-cccc",
		Modified:  "2024-02-01T00:00:00Z",
		Published: ptr("2024-01-01T00:00:00Z"),
		Aliases:   []string{"CVE-2024-1111", "CVE-2024-2222"},
		Summary:   ptr("Prototype pollution"),
		Details:   ptr("Long details."),
		Affected: []osv.Affected{
			{
				Package: osv.Package{Ecosystem: osv.EcosystemNPM, Name: "lodash"},
				Ranges: []osv.Range{{
					Type:   osv.RangeSemver,
					Events: []osv.Event{{Kind: osv.EventIntroduced, Version: "0"}, {Kind: osv.EventFixed, Version: "4.17.12"}},
				}},
				Versions: []string{"4.17.11"},
			},
			affected(osv.EcosystemPyPI, "requests"),
		},
		DatabaseSpecific: &osv.DatabaseSpecific{
			CWEIDs:   []string{"CWE-1321"},
			Severity: ptr("HIGH"),
		},
	}

	rec, err := Normalize(adv)
	require.NoError(t, err)

	row := rec.Advisory
	assert.Equal(t, "GHSA-aaaa-bbbb-cccc", row.GHSA)
	assert.Equal(t, "2024-02-01T00:00:00Z", row.Modified)
	assert.Equal(t, sql.NullString{String: "2024-01-01T00:00:00Z", Valid: true}, row.Published)
	assert.False(t, row.Withdrawn.Valid)
	assert.Equal(t, sql.NullString{String: "CVE-2024-1111", Valid: true}, row.CVE)
	assert.JSONEq(t, `["PyPI","npm"]`, row.Ecosystems)
	assert.Equal(t, "Prototype pollution", row.Summary.String)
	assert.Equal(t, "Long details.", row.Details.String)
	assert.Equal(t, sql.NullString{String: "HIGH", Valid: true}, row.Severity)
	assert.JSONEq(t, `["CWE-1321"]`, row.CWEs.String)

	require.Len(t, rec.Packages, 2)
	lodash := rec.Packages[0]
	assert.Equal(t, "GHSA-aaaa-bbbb-cccc", lodash.GHSA)
	assert.Equal(t, "lodash", lodash.Name)
	assert.Equal(t, "npm", lodash.Ecosystem)
	assert.JSONEq(t, `[{"type":"SEMVER","events":[{"introduced":"0"},{"fixed":"4.17.12"}]}]`, lodash.Ranges.String)
	assert.JSONEq(t, `["4.17.11"]`, lodash.Versions.String)

	requests := rec.Packages[1]
	assert.Equal(t, "PyPI", requests.Ecosystem)
	assert.False(t, requests.Ranges.Valid)
	assert.False(t, requests.Versions.Valid)
}

func TestNormalizeRangesDecodeBack(t *testing.T) {
	t.Parallel()

	ranges := []osv.Range{
		{Type: osv.RangeGit, Repo: "https://github.com/x/y", Events: []osv.Event{{Kind: osv.EventIntroduced, Version: "abc"}}},
		{Type: osv.RangeEcosystem, Events: []osv.Event{{Kind: osv.EventIntroduced, Version: "1"}, {Kind: osv.EventLastAffected, Version: "2"}}},
	}
	adv := &osv.Advisory{ID: "GHSA-1", Modified: "m", Affected: []osv.Affected{{
		Package: osv.Package{Ecosystem: osv.EcosystemGo, Name: "example.com/y"},
		Ranges:  ranges,
	}}}

	rec, err := Normalize(adv)
	require.NoError(t, err)

	var decoded []osv.Range
	require.NoError(t, json.Unmarshal([]byte(rec.Packages[0].Ranges.String), &decoded))
	assert.Equal(t, ranges, decoded)
}

func TestNormalizeMinimalAdvisory(t *testing.T) {
	t.Parallel()

	rec, err := Normalize(&osv.Advisory{ID: "GHSA-min", Modified: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	row := rec.Advisory
	assert.Equal(t, "[]", row.Ecosystems)
	assert.False(t, row.CVE.Valid)
	assert.False(t, row.Published.Valid)
	assert.False(t, row.Summary.Valid)
	assert.False(t, row.Details.Valid)
	assert.False(t, row.Severity.Valid)
	assert.False(t, row.CWEs.Valid)
	assert.Empty(t, rec.Packages)
}

func TestNormalizeEmptyArraysStayArrays(t *testing.T) {
	t.Parallel()

	adv := &osv.Advisory{
		ID:       "GHSA-empty",
		Modified: "m",
		Aliases:  []string{},
		Affected: []osv.Affected{{
			Package:  osv.Package{Ecosystem: osv.EcosystemMaven, Name: "g:a"},
			Ranges:   []osv.Range{},
			Versions: []string{},
		}},
		DatabaseSpecific: &osv.DatabaseSpecific{CWEIDs: []string{}},
	}

	rec, err := Normalize(adv)
	require.NoError(t, err)

	assert.False(t, rec.Advisory.CVE.Valid, "empty aliases has no CVE")
	assert.False(t, rec.Advisory.Severity.Valid)
	assert.Equal(t, sql.NullString{String: "[]", Valid: true}, rec.Advisory.CWEs)
	assert.Equal(t, sql.NullString{String: "[]", Valid: true}, rec.Packages[0].Ranges)
	assert.Equal(t, sql.NullString{String: "[]", Valid: true}, rec.Packages[0].Versions)
}

func TestNormalizeOnePackageRowPerAffectedEntry(t *testing.T) {
	t.Parallel()

	adv := &osv.Advisory{ID: "GHSA-dup", Modified: "m", Affected: []osv.Affected{
		affected(osv.EcosystemNPM, "a"),
		affected(osv.EcosystemNPM, "a"),
		affected(osv.EcosystemNPM, "b"),
	}}

	rec, err := Normalize(adv)
	require.NoError(t, err)

	assert.Len(t, rec.Packages, 3)
	assert.Equal(t, `["npm"]`, rec.Advisory.Ecosystems)
}

func TestEcosystemSetOrderIndependent(t *testing.T) {
	t.Parallel()

	a := []osv.Affected{
		affected(osv.EcosystemNPM, "x"),
		affected(osv.EcosystemPyPI, "y"),
		affected(osv.EcosystemNPM, "z"),
		affected(osv.EcosystemGo, "w"),
	}
	b := []osv.Affected{a[3], a[2], a[1], a[0]}

	want := []osv.Ecosystem{osv.EcosystemGo, osv.EcosystemPyPI, osv.EcosystemNPM}
	assert.Equal(t, want, EcosystemSet(a))
	assert.Equal(t, want, EcosystemSet(b))

	recA, err := Normalize(&osv.Advisory{ID: "GHSA-o", Modified: "m", Affected: a})
	require.NoError(t, err)
	recB, err := Normalize(&osv.Advisory{ID: "GHSA-o", Modified: "m", Affected: b})
	require.NoError(t, err)
	assert.Equal(t, recA.Advisory, recB.Advisory)
}

func TestEcosystemSetNeverNil(t *testing.T) {
	t.Parallel()

	set := EcosystemSet(nil)
	require.NotNil(t, set)
	assert.Empty(t, set)
}

func TestNormalizeRejectsUnencodableValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		adv  *osv.Advisory
	}{
		{
			name: "unknown ecosystem",
			adv: &osv.Advisory{ID: "GHSA-bad-eco", Modified: "m", Affected: []osv.Affected{
				affected(osv.Ecosystem("Nonexistent"), "p"),
			}},
		},
		{
			name: "unknown range type",
			adv: &osv.Advisory{ID: "GHSA-bad-range", Modified: "m", Affected: []osv.Affected{{
				Package: osv.Package{Ecosystem: osv.EcosystemNPM, Name: "p"},
				Ranges:  []osv.Range{{Type: osv.RangeType("BOGUS"), Events: []osv.Event{}}},
			}}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Normalize(tt.adv)
			require.Error(t, err)

			var nerr *NormalizeError
			require.ErrorAs(t, err, &nerr)
			assert.Equal(t, tt.adv.ID, nerr.ID)
		})
	}
}
