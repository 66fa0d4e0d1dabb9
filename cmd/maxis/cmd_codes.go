package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// codesCmd lists code tables
var codesCmd = &cobra.Command{
	Use:   "codes [table]",
	Short: "List code tables, or the codes of one table",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runCodes,
}

func runCodes(cmd *cobra.Command, args []string) error {
	_, tables, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, name := range tables.Names() {
			t, _ := tables.Table(name)
			blank := ""
			if t.Blank() != "" {
				blank = "blank: " + t.Blank()
			}
			fmt.Fprintf(out, "%s width %d  %3d codes  %s\n", pad(name, 20), t.Width(), t.Len(), blank)
		}
		return nil
	}

	t, ok := tables.Table(args[0])
	if !ok {
		return fmt.Errorf("unknown code table %q", args[0])
	}
	if t.Blank() != "" {
		fmt.Fprintf(out, "%s %s\n", pad("(blank)", 8), t.Blank())
	}
	for _, code := range t.Codes() {
		desc, _ := t.Lookup(code)
		fmt.Fprintf(out, "%s %s\n", pad(code, 8), desc)
	}
	return nil
}
