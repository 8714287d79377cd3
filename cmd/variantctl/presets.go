package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/UnendingLoop/ImageVariants/internal/preset"
	"github.com/UnendingLoop/ImageVariants/internal/variant"
	"github.com/spf13/cobra"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "Validate a presets file and list its presets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("presets")
		if path == "" {
			return fmt.Errorf("--presets is required")
		}

		// фабрика нужна только для валидации, рендера здесь нет
		catalog, err := preset.LoadFile(path, variant.NewFactory(nil, nil))
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tLABEL\tWARM\tADJUSTMENTS")
		for _, info := range catalog.Infos() {
			fmt.Fprintf(tw, "%s\t%s\t%v\t%d\n", info.ID, info.Label, info.Warm, len(info.Adjustments))
		}
		return tw.Flush()
	},
}
