package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"social-pulse/internal/adapters/repo"
)

func newFilesCmd(c *cli) *cobra.Command {
	var platformName string
	cmd := &cobra.Command{
		Use:   "files",
		Short: "Список сохранённых результатов",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := parsePlatformFlag(platformName)
			if err != nil {
				return err
			}
			files, err := repo.NewFiles(c.cfg.DataDir).ListSaved(p)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "Сохранённых результатов нет")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ПЛАТФОРМА\tСОХРАНЁН\tРАЗМЕР\tФАЙЛ")
			for _, f := range files {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", f.Platform, f.SavedAt.Format(time.DateTime), humanSize(f.Size), f.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVarP(&platformName, "platform", "p", "", "только эта платформа")
	return cmd
}

func humanSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
