package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/APTlantis/ROM-Verify/internal/catalog"
	"github.com/APTlantis/ROM-Verify/internal/romhash"
	"github.com/APTlantis/ROM-Verify/internal/verify"
)

func newHashCmd() *cobra.Command {
	var dat string
	cmd := &cobra.Command{
		Use:   "hash <archive>...",
		Short: "Print the header-stripped checksum of archives",
		Long: `Print "crc  entry  path" for each archive, where crc is the CRC-32 of the
single entry with its 16 byte header removed. This is the value looked up
in the catalog.

With --dat, the catalog game carrying that checksum is appended, or "?"
when the catalog does not know it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat *catalog.Catalog
			if dat != "" {
				var err error
				if cat, err = catalog.Load(dat); err != nil {
					return err
				}
			}

			out := cmd.OutOrStdout()
			failed := 0
			for _, path := range args {
				h, err := verify.HashFile(path)
				if err != nil {
					slog.Error("hash_failed", "path", path, "err", err)
					failed++
					continue
				}
				line := fmt.Sprintf("%s  %s  %s", romhash.Format(h.CRC), h.Entry, path)
				if cat != nil {
					game := "?"
					if e, ok := cat.Lookup(h.CRC); ok {
						game = e.Name
					}
					line += "  " + game
				}
				fmt.Fprintln(out, line)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives could not be hashed", failed, len(args))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dat, "dat", "", "catalog to resolve checksums against")
	return cmd
}
