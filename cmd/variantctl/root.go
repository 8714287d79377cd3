// Command variantctl renders image variants locally, without the database and the queue.
package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"
	"github.com/wb-go/wbf/zlog"
)

var rootCmd = &cobra.Command{
	Use:   "variantctl",
	Short: "Render image variants from presets or inline adjustments",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}
		zlog.InitConsole()
		return zlog.SetLevel(level)
	},
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Printf("Error executing command: %v", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("presets", "p", "", "Presets file (yaml)")
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level")
	rootCmd.AddCommand(renderCmd, presetsCmd)
}
