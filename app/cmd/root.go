package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/super-flat/nodewatcher/logging"
)

var rootCmd = &cobra.Command{
	Use:   "nodewatcher",
	Short: "watches cluster node membership and posts every change to a webhook",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// a missing .env file is fine, the environment is used as is
		err := godotenv.Load()
		if err != nil && !os.IsNotExist(err) {
			logging.Fatalf("Error loading .env file, %s", err.Error())
		}
	},
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
