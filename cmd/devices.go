package cmd

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"firestige.xyz/callwatch/internal/capture"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List capture devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDevices(cmd)
	},
}

func printDevices(w io.Writer, devs []capture.Device) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tADDRESSES\tDESCRIPTION")
	for _, d := range devs {
		addrs := make([]string, len(d.Addresses))
		for i, a := range d.Addresses {
			addrs[i] = a.String()
		}
		name := d.Name
		if d.Loopback {
			name += " (loopback)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", name, strings.Join(addrs, ","), d.Description)
	}
	tw.Flush()
}
