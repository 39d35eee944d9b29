package main

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"

	"github.com/hmarr/advisories-analysis/internal/store"
)

// printStats writes table row counts and the number of affected packages per
// ecosystem, largest first.
func printStats(ctx context.Context, w io.Writer, st *store.Store) error {
	advisories, err := st.CountAdvisories(ctx)
	if err != nil {
		return err
	}
	packages, err := st.CountAffectedPackages(ctx)
	if err != nil {
		return err
	}
	byEcosystem, err := st.EcosystemCounts(ctx)
	if err != nil {
		return err
	}

	ecosystems := make([]string, 0, len(byEcosystem))
	for e := range byEcosystem {
		ecosystems = append(ecosystems, e)
	}
	slices.SortFunc(ecosystems, func(a, b string) int {
		if byEcosystem[a] != byEcosystem[b] {
			return byEcosystem[b] - byEcosystem[a]
		}
		return cmp.Compare(a, b)
	})

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "advisories\t%d\n", advisories)
	fmt.Fprintf(tw, "affected_packages\t%d\n", packages)
	for _, e := range ecosystems {
		fmt.Fprintf(tw, "  %s\t%d\n", e, byEcosystem[e])
	}
	return tw.Flush()
}
