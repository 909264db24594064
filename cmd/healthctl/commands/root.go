package commands

import (
	"time"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	timeout   time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "healthctl",
	Short: "Control the equipment health model lifecycle service",
	Long: `healthctl drives the model lifecycle API of a running healthd instance:
training, validation, deployment, rollback, monitoring and retraining.`,
	SilenceUsage: true,
}

// Execute runs the CLI
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8080", "healthd base URL")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 5*time.Minute, "request timeout")

	rootCmd.AddCommand(
		newStatusCmd(),
		newModelsCmd(),
		newTrainCmd(),
		newValidateCmd(),
		newDeployCmd(),
		newRollbackCmd(),
		newMonitorCmd(),
		newRetrainCmd(),
	)
}
