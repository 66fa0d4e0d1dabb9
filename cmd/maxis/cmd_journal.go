package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"maxis/internal/journal"
)

var (
	journalCase  string
	journalPanel string
	journalLimit int
	journalJSON  bool
)

// journalCmd shows the write journal
var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Show recorded panel writes, newest first",
	Args:  cobra.NoArgs,
	RunE:  runJournal,
}

func init() {
	journalCmd.Flags().StringVar(&journalCase, "case", "", "Only this case")
	journalCmd.Flags().StringVar(&journalPanel, "panel", "", "Only this panel")
	journalCmd.Flags().IntVarP(&journalLimit, "limit", "n", 20, "Maximum entries (0 for all)")
	journalCmd.Flags().BoolVar(&journalJSON, "json", false, "Print entries as JSON")
}

func runJournal(cmd *cobra.Command, args []string) error {
	j, err := openJournal()
	if err != nil {
		return err
	}
	if j == nil {
		return fmt.Errorf("the journal is disabled in %s", configPath)
	}
	defer j.Close()

	entries, err := j.List(cmd.Context(), journal.Filter{Case: journalCase, Panel: journalPanel, Limit: journalLimit})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if journalJSON {
		if entries == nil {
			entries = []journal.Entry{}
		}
		return printJSON(out, entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(out, "No journal entries.")
		return nil
	}
	for _, e := range entries {
		target := e.Panel
		if e.Group != "" {
			target += "." + e.Group
		}
		line := fmt.Sprintf("%s %s %s %s %s",
			mutedStyle.Render(e.StartedAt.Local().Format("2006-01-02 15:04:05")), pad(string(e.Op), 6), pad(target, 14),
			pad(e.Context.String(), 34), outcomeStyle(e.Outcome).Render(e.Outcome))
		if e.Error != "" {
			line += ": " + e.Error
		}
		fmt.Fprintln(out, line)
	}
	return nil
}
