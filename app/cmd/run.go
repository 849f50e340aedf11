package cmd

import (
	"github.com/spf13/cobra"

	"github.com/super-flat/nodewatcher/app/server"
)

var mode string

func init() {
	runCMD.Flags().StringVar(&mode, "mode", "", "deployment mode, solo or ha (overrides MODE)")
	rootCmd.AddCommand(runCMD)
}

var runCMD = &cobra.Command{
	Use:   "run",
	Short: "run the node watcher",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := server.NewConfigFromEnv()
		if err != nil {
			return err
		}
		if mode != "" {
			cfg.Mode = mode
		}
		return server.Run(cfg)
	},
}
