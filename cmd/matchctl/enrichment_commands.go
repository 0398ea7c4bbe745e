package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newLinkORCIDCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "link-orcid <orcid>",
		Short: "Attach an ORCID iD to the researcher whose name matches its profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			components, err := ctx.ensureComponents(cmd.Context())
			if err != nil {
				return err
			}
			result, err := components.Enrichment.LinkORCID(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %s\n", result.ORCID, result.Status)
			if result.ResearcherID != nil {
				fmt.Fprintf(out, "Researcher: %d %s (score %.3f)\n", *result.ResearcherID, result.ResearcherName, result.Score)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func newVariationsCommand(ctx *commandContext) *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "variations [researcher-id]",
		Short: "Regenerate stored name variations",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := variationsTarget(args, all)
			if err != nil {
				return err
			}
			components, err := ctx.ensureComponents(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if all {
				n, err := components.Enrichment.RegenerateAllVariations(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Regenerated variations for %d researchers\n", n)
				return nil
			}

			variations, err := components.Enrichment.RegenerateVariations(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, v := range variations {
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Regenerate for every active researcher")
	return cmd
}

func variationsTarget(args []string, all bool) (int64, error) {
	switch {
	case all && len(args) > 0:
		return 0, errors.New("--all cannot be combined with a researcher ID")
	case all:
		return 0, nil
	case len(args) == 0:
		return 0, errors.New("a researcher ID or --all is required")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid researcher ID %q", args[0])
	}
	return id, nil
}
