package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, res *matching.Result) {
	fmt.Fprintf(w, "Status: %s\n", res.Status)
	if res.DOI != "" {
		fmt.Fprintf(w, "DOI:    %s\n", res.DOI)
	}
	if res.Reason != "" {
		fmt.Fprintf(w, "Reason: %s\n", res.Reason)
	}
	if len(res.Decisions) == 0 {
		fmt.Fprintln(w, "No roster researchers matched")
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "RESEARCHER\tAUTHOR\tSCORE\tTIER\tMETHOD")
		for _, d := range res.Decisions {
			fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\t%s\n",
				researcherLabel(d.Candidate.ResearcherID), authorLabel(d.Author),
				d.Candidate.FinalConfidence, d.Tier, d.Candidate.Method)
		}
		_ = tw.Flush()
	}
	for _, name := range res.UnresolvedAuthors {
		fmt.Fprintf(w, "Unresolved: %s\n", name)
	}
}

func printSummary(w io.Writer, s *domain.BatchSummary) {
	fmt.Fprintf(w, "Run:                 %s\n", s.RunID)
	fmt.Fprintf(w, "Publications:        %d\n", s.Publications)
	fmt.Fprintf(w, "Resolved:            %d\n", s.Resolved)
	fmt.Fprintf(w, "No identifier:       %d\n", s.NoIdentifier)
	fmt.Fprintf(w, "Unresolved metadata: %d\n", s.UnresolvedMetadata)
	fmt.Fprintf(w, "Failed:              %d\n", s.Failed)
	fmt.Fprintf(w, "Decisions:           %d\n", s.Decisions)
	for _, tier := range domain.AllActionTiers {
		if n := s.DecisionsByTier[tier]; n > 0 {
			fmt.Fprintf(w, "  %-18s %d\n", tier, n)
		}
	}
	fmt.Fprintf(w, "Unresolved authors:  %d\n", s.UnresolvedAuthors)
}

func researcherLabel(id *int64) string {
	if id == nil {
		return "new"
	}
	return strconv.FormatInt(*id, 10)
}

func authorLabel(a domain.ExternalAuthorRecord) string {
	if name := a.FullName(); name != "" {
		return name
	}
	return a.RawName
}
