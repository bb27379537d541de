package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-rack/dsp/core"
	"github.com/cwbudde/algo-rack/rack/plugin/builtin"
)

// printPlugins writes a table of the built-in plugin kinds.
func printPlugins(out io.Writer) error {
	f := core.DefaultFormat()
	cat := builtin.Catalog()

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	if _, err := fmt.Fprintf(tw, "Kind\tName\tChannels\tArena [bytes]\tParameters\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := fmt.Fprintf(tw, "----\t----\t--------\t-------------\t----------\n"); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, kind := range cat.Kinds() {
		info, _ := cat.Lookup(kind)
		channels := "mono"
		if info.Stereo {
			channels = "stereo"
		}
		params := make([]string, len(info.Params))
		for i, d := range info.Params {
			params[i] = fmt.Sprintf("%s:%s", d.Name, d.Type)
		}
		if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			kind, info.Name, channels, info.Size(f), strings.Join(params, " "),
		); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	return tw.Flush()
}
