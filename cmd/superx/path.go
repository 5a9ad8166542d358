package main

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/inspector"
)

func newPathCmd(g *globalFlags) *cobra.Command {
	var loc locatorFlags
	cmd := &cobra.Command{
		Use:   "path <source>",
		Short: "Generate full and optimized XPath expressions for picked elements",
		Long: `Pick elements on a page and print, for each one, its full structural path
and the shortest expression that still selects it alone.

Examples:
  superx path page.html --css "li.item"
  superx path https://example.com --text "More information"
  curl -s https://example.com | superx path - --xpath "//a" --format markdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, value, err := loc.kindValue()
			if err != nil {
				return err
			}
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.Generate(cmd.Context(), &inspector.GenerateRequest{
				PageRef: pageRef(args[0], g.render),
				Kind:    kind,
				Value:   value,
				Limit:   loc.limit,
			})
			if err != nil {
				return err
			}
			f, _ := parseFormat(g.format)
			return printGenerate(cmd.OutOrStdout(), f, resp)
		},
	}
	loc.register(cmd, true)
	cmd.Flags().IntVar(&loc.limit, "limit", 0, "max elements (0 = all)")
	return cmd
}
