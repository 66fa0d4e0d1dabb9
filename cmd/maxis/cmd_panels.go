package main

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"maxis/internal/schema"
)

// panelsCmd lists and validates the panel schemas
var panelsCmd = &cobra.Command{
	Use:   "panels [panel]",
	Short: "List panel schemas, or show one panel's layout",
	Long: `Loads the built-in panel schemas plus any configured schema files,
checks them for overlapping regions and unknown code tables, and lists
them. With a panel name, prints every field with its screen regions.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPanels,
}

func runPanels(cmd *cobra.Command, args []string) error {
	reg, _, err := loadCatalog()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 1 {
		s, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		printLayout(cmd, s)
		return nil
	}

	for _, p := range reg.Panels() {
		s, _ := reg.Get(p)
		groups := make([]string, 0, len(s.Groups))
		for _, g := range s.Groups {
			groups = append(groups, g.Name)
		}
		fmt.Fprintf(out, "%s %s %s %2d fields  %s\n",
			pad(s.Group, 5), pad(s.Panel, 5), pad(string(s.Scope), 7), len(s.Fields), strings.Join(groups, ","))
	}
	return nil
}

func printLayout(cmd *cobra.Command, s *schema.Schema) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("%s/%s (%s)", s.Group, s.Panel, s.Scope)))
	for i := range s.Fields {
		printField(cmd, "  ", &s.Fields[i])
	}
	for _, g := range s.Groups {
		fmt.Fprintln(out, headingStyle.Render(fmt.Sprintf("  [%s] %d slots, key %s, paging %s", g.Name, g.Slots, g.Key, g.Paging)))
		for i := range g.Fields {
			printField(cmd, "    ", &g.Fields[i])
		}
	}
}

func printField(cmd *cobra.Command, indent string, f *schema.Field) {
	regions := make([]string, 0, len(f.Regions()))
	for _, r := range f.Regions() {
		regions = append(regions, fmt.Sprintf("%d,%d+%d", r.Row, r.Col, r.Width))
	}
	extra := f.Table
	if f.When != nil {
		extra = strings.TrimSpace(extra + " when " + f.When.Field)
	}
	if f.Sensitive {
		extra = strings.TrimSpace(extra + " sensitive")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s%s %s %s %s\n",
		indent, pad(f.Name, 22), pad(string(f.Kind), 13), pad(strings.Join(regions, " "), 24), extra)
}

// pad fills s to width display columns.
func pad(s string, width int) string {
	return runewidth.FillRight(s, width)
}
