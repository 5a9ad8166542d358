package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/superx/audit"
	"github.com/hazyhaar/superx/inspector"
)

func newAuditCmd(g *globalFlags) *cobra.Command {
	var (
		req   inspector.AuditRequest
		since time.Duration
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show operations recorded by serve --audit or mcp --audit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			g.audit = true
			svc, _, _, err := g.service()
			if err != nil {
				return err
			}
			defer svc.Close()

			if since > 0 {
				req.Since = time.Now().Add(-since)
			}
			entries, err := svc.AuditTrail(cmd.Context(), &req)
			if err != nil {
				return err
			}
			f, _ := parseFormat(g.format)
			return printAudit(cmd.OutOrStdout(), f, entries)
		},
	}
	cmd.Flags().StringVar(&req.Operation, "op", "", "only this operation, e.g. verify_locator")
	cmd.Flags().StringVar(&req.Status, "status", "", "success, error or timeout")
	cmd.Flags().DurationVar(&since, "since", 0, "only entries newer than this, e.g. 1h")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "maximum entries")
	return cmd
}

func printAudit(w io.Writer, f format, entries []audit.Entry) error {
	switch f {
	case formatJSON:
		if entries == nil {
			entries = []audit.Entry{}
		}
		return writeJSON(w, entries)
	case formatMarkdown:
		fmt.Fprintln(w, "| Time | Operation | Transport | Status | Duration | Error |")
		fmt.Fprintln(w, "|------|-----------|-----------|--------|----------|-------|")
		for _, e := range entries {
			fmt.Fprintf(w, "| %s | %s | %s | %s | %dms | %s |\n",
				e.Time.Format(time.RFC3339), e.Operation, e.Transport, e.Status, e.DurationMs, mdCell(e.Error))
		}
		return nil
	}
	if len(entries) == 0 {
		fmt.Fprintln(w, "no recorded operations")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %-15s %-5s %-7s %5dms", e.Time.Format(time.RFC3339), e.Operation, e.Transport, e.Status, e.DurationMs)
		if e.Error != "" {
			fmt.Fprintf(w, "  %s", e.Error)
		}
		fmt.Fprintln(w)
	}
	return nil
}
