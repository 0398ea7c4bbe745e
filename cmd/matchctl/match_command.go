package main

import (
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/helixir/author-matching-service/internal/domain"
	"github.com/helixir/author-matching-service/internal/matching"
)

var errNoMatchInput = errors.New("a URL or DOI argument, --authors or --id is required")

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var title string
	var authors string
	var publicationID int64
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "match [url-or-doi]",
		Short: "Match one publication against the researcher roster",
		Long: "Match an ad-hoc reference given as a URL or DOI and/or a free-text author list, " +
			"or a stored publication with --id. Stored matches are persisted under a new run.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := domain.RawPublicationRef{
				Title:           strings.TrimSpace(title),
				FreeTextAuthors: strings.TrimSpace(authors),
			}
			if len(args) == 1 {
				ref.URLOrDOI = strings.TrimSpace(args[0])
			}
			if err := validateMatchInput(ref, publicationID); err != nil {
				return err
			}

			components, err := ctx.ensureComponents(cmd.Context())
			if err != nil {
				return err
			}

			var res *matching.Result
			if publicationID > 0 {
				res, err = components.Matcher.MatchStored(cmd.Context(), uuid.New(), publicationID)
			} else {
				res, err = components.Matcher.MatchAdHoc(cmd.Context(), ref)
			}
			if err != nil {
				return err
			}

			if asJSON {
				return writeJSON(cmd, res)
			}
			printResult(cmd.OutOrStdout(), res)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Publication title")
	cmd.Flags().StringVar(&authors, "authors", "", "Free-text author list")
	cmd.Flags().Int64Var(&publicationID, "id", 0, "Stored publication ID")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the result as JSON")
	return cmd
}

func validateMatchInput(ref domain.RawPublicationRef, publicationID int64) error {
	if publicationID < 0 {
		return errors.New("--id must be positive")
	}
	if publicationID > 0 {
		if ref.URLOrDOI != "" || ref.FreeTextAuthors != "" {
			return errors.New("--id cannot be combined with a reference")
		}
		return nil
	}
	if ref.URLOrDOI == "" && ref.FreeTextAuthors == "" {
		return errNoMatchInput
	}
	return nil
}
