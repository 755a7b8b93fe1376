package cmd

import (
	"context"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/report"
)

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "Suggest a weekly study time for every participant",
	Run: func(_ *cobra.Command, _ []string) {
		estimateTargets()
	},
}

func init() {
	rootCmd.AddCommand(targetsCmd)

	targetsCmd.Flags().StringP("output", "o", "", "targets file, '-' for stdout (default is output.targets from the config)")

	viper.BindPFlag("output.targets", targetsCmd.Flags().Lookup("output"))
}

func estimateTargets() {
	ctx := context.Background()
	logger, config := setup()

	list, err := estimate(ctx, config, logger)
	if err != nil {
		logger.Fatal("estimating targets", zap.Error(err))
	}

	out := &OutputConfig{}
	if config.Output != nil {
		out = config.Output
	}

	format, err := report.ParseFormat(out.Format)
	if err != nil {
		logger.Fatal("getting output format", zap.Error(err))
	}

	if err := emit(out.Targets, format, func(w io.Writer, f report.Format) error {
		return report.WriteTargets(w, f, list)
	}); err != nil {
		logger.Fatal("writing targets", zap.Error(err))
	}

	logger.Info("targets estimated", zap.String("filename", out.Targets), zap.Int("participants", len(list)))
}
