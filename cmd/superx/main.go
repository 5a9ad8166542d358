// CLAUDE:SUMMARY superx CLI entry point: path/query one-shots, locator catalog, HTTP+MCP server and stdio MCP.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "superx:", err)
		os.Exit(1)
	}
}
