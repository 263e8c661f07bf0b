package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var zonesLimit int

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "Inspect the configured zone system",
	RunE: func(cmd *cobra.Command, args []string) error {
		set, err := loadZones()
		if err != nil {
			return err
		}

		inArea := set.InAreaIDs()
		fmt.Printf("Shapefile:  %s\n", cfg.Zones.Shapefile)
		fmt.Printf("Zones:      %d\n", set.Len())
		if cfg.Zones.AreaFile != "" {
			fmt.Printf("In area:    %d\n", len(inArea))
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "\nID\tCENTRE X\tCENTRE Y\tIN AREA")
		for i, id := range set.IDs() {
			if i >= zonesLimit {
				_, _ = fmt.Fprintf(w, "... %d more\t\t\t\n", set.Len()-zonesLimit)
				break
			}
			z, _ := set.Get(id)
			x, y := z.RepresentativePoint()
			_, _ = fmt.Fprintf(w, "%s\t%.0f\t%.0f\t%v\n", id, x, y, z.InArea)
		}
		return w.Flush()
	},
}

func init() {
	zonesCmd.Flags().IntVar(&zonesLimit, "limit", 20, "maximum zones to list")
	rootCmd.AddCommand(zonesCmd)
}
