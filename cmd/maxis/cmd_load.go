package main

import (
	"github.com/spf13/cobra"

	"maxis/internal/session"
)

var (
	loadFixture string
	loadAddr    contextFlags
)

// loadCmd reads one panel instance
var loadCmd = &cobra.Command{
	Use:   "load <panel>",
	Short: "Read a panel instance and print it as JSON",
	Long: `Navigates to the panel, selects the member and instance, decodes every
field and repeating group, and prints the record.

Example:
  maxis load ACCT --fixture case.yaml --case 123456 --month 01 --year 24 --member 01 --instance 01`,
	Args: cobra.ExactArgs(1),
	RunE: runLoad,
}

func init() {
	loadCmd.Flags().StringVar(&loadFixture, "fixture", "", "Simulated host fixture (YAML)")
	loadAddr.bind(loadCmd)
}

func runLoad(cmd *cobra.Command, args []string) error {
	res, err := runSingle(cmd, loadFixture, session.Job{
		Op:      session.OpLoad,
		Panel:   args[0],
		Context: loadAddr.context(),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), res.Record)
}

// runSingle runs one job on a fresh simulated session.
func runSingle(cmd *cobra.Command, fixture string, job session.Job) (session.Result, error) {
	reg, tables, err := loadCatalog()
	if err != nil {
		return session.Result{}, err
	}
	h, err := simHost(reg, fixture)
	if err != nil {
		return session.Result{}, err
	}

	j, err := openJournal()
	if err != nil {
		return session.Result{}, err
	}
	if j != nil {
		defer j.Close()
	}

	e := newExecutor(reg, tables, j)
	job.Session = "sim"
	if err := e.Attach(session.NewSession(job.Session, h)); err != nil {
		return session.Result{}, err
	}
	results, err := e.Run(cmd.Context(), []session.Job{job})
	if err != nil {
		return session.Result{}, err
	}
	return results[0], nil
}
