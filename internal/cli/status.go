package cli

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/ledger"
)

// newStatusCmd creates the 'status' command.
func newStatusCmd() *cobra.Command {
	var errorsOnly bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the outcomes recorded in the progress file",
		Long: `Show every file recorded in the progress file with its status, identifier
or error, and when it was recorded. Failed files are retried by the next
upload of the same directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			led := ledger.Open(cfg.ProgressFilePath(progressFile), GetLogger())
			led.Load()

			out := cmd.OutOrStdout()
			items := led.Entries()
			if len(items) == 0 {
				fmt.Fprintf(out, "No uploads recorded in %s\n", led.Path())
				return nil
			}

			var rows [][]string
			var succeeded, failed int
			for _, item := range items {
				if item.Status == ledger.StatusSuccess {
					succeeded++
				} else {
					failed++
				}
				if errorsOnly && item.Status == ledger.StatusSuccess {
					continue
				}
				rows = append(rows, []string{item.Path, string(item.Status), statusDetail(item.Entry), recordedAt(item.Entry)})
			}

			if len(rows) > 0 {
				fmt.Fprintln(out, renderTable(
					[]string{"File", "Status", "Identifier / error", "Recorded"},
					rows,
					nil,
					nil,
				))
			}
			fmt.Fprintf(out, "%d uploaded, %d errors (%s)\n", succeeded, failed, led.Path())
			return nil
		},
	}

	cmd.Flags().BoolVar(&errorsOnly, "errors", false, "Only show files whose last upload failed")
	return cmd
}

func statusDetail(e ledger.Entry) string {
	if e.Status == ledger.StatusSuccess {
		return e.Identifier
	}
	return e.Error
}

func recordedAt(e ledger.Entry) string {
	t, ok := e.Time()
	if !ok {
		return e.Date
	}
	return humanize.Time(t)
}
