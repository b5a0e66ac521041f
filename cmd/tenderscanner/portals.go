package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/portal"
)

var portalsSet string

var portalsCmd = &cobra.Command{
	Use:   "portals",
	Short: "List the configured procurement portals",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg := portal.Default()
		set, err := portal.ParseSet(portalsSet)
		if err != nil {
			return err
		}
		ids, err := reg.Select(set)
		if err != nil {
			return err
		}
		descs := make([]domain.PortalDescriptor, 0, len(ids))
		for _, id := range ids {
			if d, ok := reg.Lookup(id); ok {
				descs = append(descs, d)
			}
		}
		formatPortals(os.Stdout, descs)
		return nil
	},
}

func formatPortals(w io.Writer, descs []domain.PortalDescriptor) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tKIND\tBROWSER")
	for _, d := range descs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", d.ID, d.Name, d.Kind, d.NeedsBrowser)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	portalsCmd.Flags().StringVar(&portalsSet, "set", string(portal.SetAll), "portal set to list")
	rootCmd.AddCommand(portalsCmd)
}
