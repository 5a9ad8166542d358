package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/inspector"
)

func newLocatorCmd(g *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "locator",
		Short: "Manage the catalog of saved locators",
	}
	cmd.AddCommand(
		newLocatorSaveCmd(g),
		newLocatorListCmd(g),
		newLocatorVerifyCmd(g),
		newLocatorDeleteCmd(g),
	)
	return cmd
}

func newLocatorSaveCmd(g *globalFlags) *cobra.Command {
	var (
		loc       locatorFlags
		name      string
		full, opt string
		pageURL   string
	)
	cmd := &cobra.Command{
		Use:   "save <source>",
		Short: "Pick an element and save its paths",
		Long: `Save a locator for the first element picked by --css, --xpath or --text.
Alternatively pass --full-path and --optimized-path to store known paths.

Examples:
  superx locator save https://shop.test --css "button.buy" --name "buy button"
  superx locator save page.html --url https://shop.test --text "Add to cart"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, value, err := loc.kindValue()
			if err != nil && (full == "" || opt == "") {
				return fmt.Errorf("%w, or both --full-path and --optimized-path", err)
			}
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ref := pageRef(args[0], g.render)
			if pageURL != "" {
				ref.URL = pageURL
			}
			saved, err := svc.SaveLocator(cmd.Context(), &inspector.SaveLocatorRequest{
				PageRef:       ref,
				Name:          name,
				Kind:          kind,
				Value:         value,
				FullPath:      full,
				OptimizedPath: opt,
			})
			if err != nil {
				return err
			}
			f, _ := parseFormat(g.format)
			return printLocator(cmd.OutOrStdout(), f, saved)
		},
	}
	loc.register(cmd, false)
	cmd.Flags().StringVar(&name, "name", "", "human label")
	cmd.Flags().StringVar(&full, "full-path", "", "store this full path as is")
	cmd.Flags().StringVar(&opt, "optimized-path", "", "store this optimized path as is")
	cmd.Flags().StringVar(&pageURL, "url", "", "page URL to record when <source> is a file")
	return cmd
}

func newLocatorListCmd(g *globalFlags) *cobra.Command {
	var pageURL string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved locators",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			locs, err := svc.ListLocators(cmd.Context(), &inspector.ListLocatorsRequest{PageURL: pageURL})
			if err != nil {
				return err
			}
			f, _ := parseFormat(g.format)
			return printLocators(cmd.OutOrStdout(), f, locs)
		},
	}
	cmd.Flags().StringVar(&pageURL, "page", "", "only locators of this page URL")
	return cmd
}

func newLocatorVerifyCmd(g *globalFlags) *cobra.Command {
	var (
		source string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "verify [id...]",
		Short: "Reload pages and check saved locators still select one element",
		Long: `Re-evaluate saved locators against their page. A locator is OK when its
optimized path selects exactly one element, and consistent when the full
path selects that same element. The command fails when any locator is broken.

Examples:
  superx locator verify loc_0190...
  superx locator verify --all
  superx locator verify loc_0190... --source snapshot.html`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("give locator ids or --all")
			}
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			ids := args
			if all {
				locs, err := svc.ListLocators(cmd.Context(), &inspector.ListLocatorsRequest{})
				if err != nil {
					return err
				}
				ids = ids[:0:0]
				for _, l := range locs {
					ids = append(ids, l.ID)
				}
			}

			f, _ := parseFormat(g.format)
			var page inspector.PageRef
			if source != "" {
				page = pageRef(source, g.render)
			}
			broken := 0
			for _, id := range ids {
				res, err := svc.VerifyLocator(cmd.Context(), &inspector.VerifyLocatorRequest{ID: id, Page: page})
				if err != nil {
					return err
				}
				if !res.OK {
					broken++
				}
				if err := printVerify(cmd.OutOrStdout(), f, res); err != nil {
					return err
				}
			}
			if broken > 0 {
				return fmt.Errorf("%d of %d locators broken", broken, len(ids))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&source, "source", "", "verify against this source instead of the stored page")
	cmd.Flags().BoolVar(&all, "all", false, "verify every saved locator")
	return cmd
}

func newLocatorDeleteCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved locator",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			resp, err := svc.DeleteLocator(cmd.Context(), &inspector.LocatorIDRequest{ID: args[0]})
			if err != nil {
				return err
			}
			f, _ := parseFormat(g.format)
			if f == formatText {
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", resp.ID)
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
}
