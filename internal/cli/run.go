package cli

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lucasnoah/skyflag/internal/artifact"
	"github.com/lucasnoah/skyflag/internal/config"
	"github.com/lucasnoah/skyflag/internal/flagger"
	"github.com/lucasnoah/skyflag/internal/report"
	"github.com/lucasnoah/skyflag/internal/rules"
)

var runCmd = &cobra.Command{
	Use:   "run [stage-id]",
	Short: "Run the iterative flagger for a stage",
	Long: `Run evaluates the stage's rules against the views of its artifact until
no new flags appear or niter is reached, applies the flags to the artifact,
stores the result and records the run in the history database.

The stage ID may be omitted when the config defines a single stage.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		stageID := ""
		if len(args) == 1 {
			stageID = args[0]
		}
		stage, err := cfg.Stage(stageID)
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Flagging.Log)
		if err != nil {
			return err
		}
		defer logger.Sync()

		artifactPath, _ := cmd.Flags().GetString("artifact")
		if artifactPath == "" {
			artifactPath = stage.Artifact
		}
		niter, _ := cmd.Flags().GetInt("niter")
		if niter <= 0 {
			niter = stage.NIter
		}

		fl, err := newFlagger(stage, flagger.Config{
			Artifact:        artifactPath,
			NIter:           niter,
			IterateDataTask: stage.Iterate(),
		}, logger.With(zap.String("stage", stage.ID)))
		if err != nil {
			return err
		}

		res, err := fl.Run(cmd.Context())
		if err != nil {
			return fmt.Errorf("stage %s: %w", stage.ID, err)
		}

		runID := uuid.NewString()
		rec, err := openStore(cfg).Save(stage.ID, string(stage.Shape), runID, res)
		if err != nil {
			return err
		}

		if noRecord, _ := cmd.Flags().GetBool("no-record"); !noRecord {
			d, cleanup, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer cleanup()
			if _, err := d.RecordRun(cmd.Context(), runID, stage.ID, string(stage.Shape), res); err != nil {
				return err
			}
		}

		w := cmd.OutOrStdout()
		if format, _ := cmd.Flags().GetString("format"); format == "json" {
			data, err := json.MarshalIndent(rec, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal result: %w", err)
			}
			fmt.Fprintln(w, string(data))
			return nil
		}

		fmt.Fprintf(w, "Run %s (stage %s)\n", runID, stage.ID)
		return report.WriteSummary(w, res)
	},
}

// newFlagger builds the controller for a stage from its shape, wired to
// the file-backed artifact collaborators.
func newFlagger(stage *config.Stage, fcfg flagger.Config, logger *zap.Logger) (*flagger.Flagger, error) {
	opts := rules.Options{
		Intent:       stage.Intent,
		Field:        stage.Field,
		ExtendFields: stage.ExtendFields,
		Logger:       logger,
	}
	data := artifact.NewDataTask(logger)
	setter := artifact.NewFlagSetter(logger)

	switch stage.Shape {
	case rules.Matrix:
		return flagger.NewMatrixFlagger(stage.Rules, opts, data, setter, fcfg)
	case rules.Vector:
		return flagger.NewVectorFlagger(stage.Rules, opts, data, setter, fcfg)
	}
	return nil, fmt.Errorf("stage %s: unknown shape %q", stage.ID, stage.Shape)
}

func init() {
	runCmd.Flags().String("artifact", "", "Override the stage's artifact path")
	runCmd.Flags().Int("niter", 0, "Override the stage's maximum iterations")
	runCmd.Flags().Bool("no-record", false, "Skip recording the run in the history database")
	runCmd.Flags().String("format", "text", "Output format: text or json")
}
