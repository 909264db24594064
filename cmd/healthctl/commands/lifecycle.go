package commands

import (
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show registry, serving and retraining status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/ml/model-status")
		},
	}
}

func newModelsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List every registered model artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			return getJSON("/api/v1/ml/models")
		},
	}
}

func newTrainCmd() *cobra.Command {
	var featuresPath, bump, createdBy string

	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train and register a new model version",
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := loadFeaturesFile(featuresPath)
			if err != nil {
				return err
			}
			return postJSON("/api/v1/ml/train", map[string]interface{}{
				"features":     map[string]interface{}{"features": features},
				"version_bump": bump,
				"created_by":   createdBy,
			})
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "", "path to JSON file of per-device feature vectors")
	cmd.Flags().StringVar(&bump, "bump", "patch", "version bump: major, minor or patch")
	cmd.Flags().StringVar(&createdBy, "created-by", "healthctl", "creator recorded on the artifact")
	cmd.MarkFlagRequired("features") //nolint:errcheck

	return cmd
}

func newValidateCmd() *cobra.Command {
	var modelID, featuresPath, outcomesPath string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Run the validation gate on a model artifact",
		Long: `Run the validation gate on a model artifact. Without --features and
--outcomes the gate validates against generated synthetic data and marks the
result accordingly.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			body := map[string]interface{}{"model_id": modelID}
			if featuresPath != "" && outcomesPath != "" {
				features, err := loadFeaturesFile(featuresPath)
				if err != nil {
					return err
				}
				outcomes, err := loadOutcomesFile(outcomesPath)
				if err != nil {
					return err
				}
				body["validation_data"] = map[string]interface{}{
					"features": map[string]interface{}{"features": features},
					"outcomes": outcomes,
				}
			}
			return postJSON("/api/v1/ml/validate", body)
		},
	}

	cmd.Flags().StringVar(&modelID, "model-id", "", "artifact id to validate")
	cmd.Flags().StringVar(&featuresPath, "features", "", "path to held-out feature vectors (optional)")
	cmd.Flags().StringVar(&outcomesPath, "outcomes", "", "path to ground-truth outcomes (optional)")
	cmd.MarkFlagRequired("model-id") //nolint:errcheck

	return cmd
}

func newDeployCmd() *cobra.Command {
	var modelID, strategy string
	var force bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Promote a validated model artifact to production",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/ml/deploy", map[string]interface{}{
				"model_id": modelID,
				"strategy": strategy,
				"force":    force,
			})
		},
	}

	cmd.Flags().StringVar(&modelID, "model-id", "", "artifact id to deploy")
	cmd.Flags().StringVar(&strategy, "strategy", "blue_green", "deployment strategy: blue_green, canary, rolling, immediate")
	cmd.Flags().BoolVar(&force, "force", false, "deploy even if the artifact has not passed validation")
	cmd.MarkFlagRequired("model-id") //nolint:errcheck

	return cmd
}

func newRollbackCmd() *cobra.Command {
	var targetVersion string

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Return production to a previous model version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return postJSON("/api/v1/ml/rollback", map[string]interface{}{
				"target_version": targetVersion,
			})
		},
	}

	cmd.Flags().StringVar(&targetVersion, "target-version", "", "version to roll back to (default: latest deprecated)")

	return cmd
}

func newMonitorCmd() *cobra.Command {
	var featuresPath, outcomesPath string

	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run one monitoring observation of the production model",
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := loadFeaturesFile(featuresPath)
			if err != nil {
				return err
			}
			body := map[string]interface{}{
				"features": map[string]interface{}{"features": features},
			}
			if outcomesPath != "" {
				outcomes, err := loadOutcomesFile(outcomesPath)
				if err != nil {
					return err
				}
				body["outcomes"] = outcomes
			}
			return postJSON("/api/v1/ml/monitor", body)
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "", "path to JSON file of per-device feature vectors")
	cmd.Flags().StringVar(&outcomesPath, "outcomes", "", "path to ground-truth outcomes (optional)")
	cmd.MarkFlagRequired("features") //nolint:errcheck

	return cmd
}

func newRetrainCmd() *cobra.Command {
	var featuresPath string
	var force bool

	cmd := &cobra.Command{
		Use:   "retrain",
		Short: "Trigger the retraining pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			features, err := loadFeaturesFile(featuresPath)
			if err != nil {
				return err
			}
			return postJSON("/api/v1/ml/retrain", map[string]interface{}{
				"features": map[string]interface{}{"features": features},
				"force":    force,
			})
		},
	}

	cmd.Flags().StringVar(&featuresPath, "features", "", "path to JSON file of per-device feature vectors")
	cmd.Flags().BoolVar(&force, "force", false, "retrain even when the policy says the model is healthy")
	cmd.MarkFlagRequired("features") //nolint:errcheck

	return cmd
}
