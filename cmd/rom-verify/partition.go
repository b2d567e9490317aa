package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
	"github.com/APTlantis/ROM-Verify/internal/report"
)

func newPartitionCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "partition [collection...]",
		Short: "Show how many catalog entries fall in each category",
		Long: `Load the catalog of each collection and split it into categories
without scanning any ROM directory.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, cfg, err := root.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			targets, err := root.targets(cfg, args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			styles := report.NewStyles(out)
			for _, t := range targets {
				cat, err := catalog.Load(t.col.DatFile())
				if err != nil {
					return fmt.Errorf("collection %q: %w", t.name, err)
				}
				names := t.col.CategoryNames()
				_, counts := cat.Partition(names)

				fmt.Fprintln(out, styles.Title.Render(t.name))
				fmt.Fprintln(out, styles.Dim.Render(fmt.Sprintf("%s: %d entries, %d malformed",
					cat.Name, len(cat.Entries), len(cat.Malformed))))
				for _, name := range names {
					line := fmt.Sprintf("%-10s%10d", name, counts[name])
					if counts[name] == 0 {
						line = styles.None.Render(line)
					}
					fmt.Fprintln(out, line)
				}
			}
			return nil
		},
	}
	addCollectionFlags(cmd.Flags(), root)
	return cmd
}
