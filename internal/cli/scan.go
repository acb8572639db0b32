package cli

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/rescale/archive-uploader/internal/scan"
)

// newScanCmd creates the 'scan' command.
func newScanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scan <directory>",
		Short: "List the files an upload would pick up",
		Long: `List every supported file below <directory> with its category and size,
followed by per-category totals. Files inside "Uploaded" folders are
excluded, as they are during an upload.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir := args[0]
			candidates, err := scan.Scan(dir, scan.Options{
				ExcludeDir: cfg.Uploader.ProcessedDir,
				Logger:     GetLogger().Zerolog(),
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(candidates) == 0 {
				fmt.Fprintf(out, "No supported files in %s\n", dir)
				return nil
			}

			rows := make([][]string, 0, len(candidates))
			for _, c := range candidates {
				rel, err := filepath.Rel(dir, c.Path)
				if err != nil {
					rel = c.Path
				}
				rows = append(rows, []string{rel, string(c.Category), humanize.IBytes(uint64(c.Size))})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"File", "Category", "Size"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignRight},
				nil,
			))

			summary := scan.Summarize(candidates)
			totals := make([][]string, 0, len(summary.Categories))
			for _, ct := range summary.Categories {
				totals = append(totals, []string{
					string(ct.Category),
					strconv.Itoa(ct.Files),
					humanize.IBytes(uint64(ct.Bytes)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Category", "Files", "Size"},
				totals,
				[]columnAlignment{alignLeft, alignRight, alignRight},
				[]string{"total", strconv.Itoa(summary.Files), humanize.IBytes(uint64(summary.Bytes))},
			))
			return nil
		},
	}
}
