package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"maxis/internal/session"
)

var (
	commitFixture string
	commitSet     []string
	commitCreate  bool
	commitGroup   string
	commitAddr    contextFlags
)

// commitCmd writes field values to a panel
var commitCmd = &cobra.Command{
	Use:   "commit <panel>",
	Short: "Write fields to a panel instance, create one, or append a group entry",
	Long: `Writes the given fields and saves the panel. Fields not named are left
as they are; an empty value clears the field.

  --create     allocate a new instance first
  --group NAME append the values as a new entry of a repeating group

Every write is recorded in the journal whatever its outcome.

Example:
  maxis commit ACCT --create --case 123456 --month 01 --year 24 --member 01 \
      --set type=SV --set balance=1200 --set balance_verif=1`,
	Args: cobra.ExactArgs(1),
	RunE: runCommit,
}

func init() {
	commitCmd.Flags().StringVar(&commitFixture, "fixture", "", "Simulated host fixture (YAML)")
	commitCmd.Flags().StringArrayVar(&commitSet, "set", nil, "Field assignment name=value (repeatable)")
	commitCmd.Flags().BoolVar(&commitCreate, "create", false, "Create a new panel instance")
	commitCmd.Flags().StringVar(&commitGroup, "group", "", "Append to this repeating group")
	commitAddr.bind(commitCmd)
}

func runCommit(cmd *cobra.Command, args []string) error {
	if commitCreate && commitGroup != "" {
		return fmt.Errorf("--create and --group cannot be combined")
	}
	values, err := parseAssignments(commitSet)
	if err != nil {
		return err
	}

	op := session.OpCommit
	switch {
	case commitCreate:
		op = session.OpCreate
	case commitGroup != "":
		op = session.OpAppend
	}

	res, err := runSingle(cmd, commitFixture, session.Job{
		Op:      op,
		Panel:   args[0],
		Context: commitAddr.context(),
		Values:  values,
		Group:   commitGroup,
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res.Record)
}
