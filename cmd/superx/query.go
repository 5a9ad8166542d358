package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/inspector"
)

func newQueryCmd(g *globalFlags) *cobra.Command {
	var (
		annotate string
		preview  bool
		limit    int
	)
	cmd := &cobra.Command{
		Use:   "query <source> <expr>",
		Short: "Evaluate an XPath expression and list the matches",
		Long: `Evaluate an XPath 1.0 expression against a page. The true match count is
always reported; at most query.max_highlight matches are listed.

With --annotate, a copy of the page is written with the listed matches
carrying the xpath-query-match class and the highlight stylesheet.

Examples:
  superx query page.html "//li"
  superx query https://example.com "//a[@href]" --preview
  superx query page.html "//table//tr" --annotate marked.html`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			req := &inspector.QueryRequest{
				PageRef: pageRef(args[0], g.render),
				Expr:    args[1],
				Preview: preview,
				Limit:   limit,
			}
			f, _ := parseFormat(g.format)

			if annotate == "" {
				resp, err := svc.Query(cmd.Context(), req)
				if err != nil {
					return err
				}
				return printQuery(cmd.OutOrStdout(), f, resp)
			}

			body, resp, err := svc.Annotate(cmd.Context(), req)
			if err != nil {
				return err
			}
			if err := os.WriteFile(annotate, body, 0o644); err != nil {
				return fmt.Errorf("write annotated page: %w", err)
			}
			if err := printQuery(cmd.OutOrStdout(), f, resp); err != nil {
				return err
			}
			if f == formatText {
				fmt.Fprintf(cmd.OutOrStdout(), "annotated page written to %s\n", annotate)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&annotate, "annotate", "", "write the page with matches highlighted to this file")
	cmd.Flags().BoolVar(&preview, "preview", false, "include text and markdown previews of the first matches")
	cmd.Flags().IntVar(&limit, "limit", 0, "max matches to list (capped by query.max_highlight)")
	return cmd
}
