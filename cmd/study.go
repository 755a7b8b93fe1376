package cmd

import (
	"context"
	"errors"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/report"
	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/studylog"
	"github.com/spigell/skillmatch/internal/targets"
)

var now = time.Now

var studyCmd = &cobra.Command{
	Use:   "study",
	Short: "Record study sessions and check them against the weekly targets",
}

var studyLogCmd = &cobra.Command{
	Use:   "log",
	Short: "Record a study session",
	Run: func(cmd *cobra.Command, _ []string) {
		logStudy(cmd)
	},
}

var studyWeekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show a participant's study time per day over the last week",
	Run: func(cmd *cobra.Command, _ []string) {
		showWeek(cmd)
	},
}

var studyDefaultersCmd = &cobra.Command{
	Use:   "defaulters",
	Short: "List participants who studied less than their target over the last week",
	Run: func(cmd *cobra.Command, _ []string) {
		listDefaulters(cmd)
	},
}

func init() {
	rootCmd.AddCommand(studyCmd)
	studyCmd.AddCommand(studyLogCmd, studyWeekCmd, studyDefaultersCmd)

	studyCmd.PersistentFlags().StringP("study-log", "l", "", "study log file (.csv)")
	viper.BindPFlag("study-log", studyCmd.PersistentFlags().Lookup("study-log"))

	studyLogCmd.Flags().StringP("name", "n", "", "participant name")
	studyLogCmd.Flags().StringP("email", "e", "", "participant email")
	studyLogCmd.Flags().Float64P("minutes", "m", 0, "minutes studied")

	studyWeekCmd.Flags().StringP("name", "n", "", "participant name or email")

	studyDefaultersCmd.Flags().StringP("output", "o", "-", "defaulters file, '-' for stdout")
	studyDefaultersCmd.Flags().Bool("all", false, "list every participant, not only defaulters")
}

func setup() (*zap.Logger, *Config) {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil || config == nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	return logger, config
}

func logStudy(cmd *cobra.Command) {
	logger, config := setup()

	name, _ := cmd.Flags().GetString("name")
	email, _ := cmd.Flags().GetString("email")
	minutes, _ := cmd.Flags().GetFloat64("minutes")

	s, err := recordSession(config.StudyLog, studylog.Session{Name: name, Email: email, Minutes: minutes, At: now()})
	if err != nil {
		logger.Fatal("recording study session", zap.Error(err))
	}

	logger.Info("study session recorded",
		zap.String("participant_id", s.ParticipantID()),
		zap.Float64("minutes", s.Minutes),
		zap.String("filename", config.StudyLog),
	)
}

func recordSession(path string, s studylog.Session) (studylog.Session, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return s, errors.New("study log file is not configured (set study-log or pass --study-log)")
	}

	s.Name = strings.TrimSpace(s.Name)
	s.Email = strings.TrimSpace(s.Email)
	s.At = s.At.Truncate(time.Second)

	return s, studylog.Append(path, s)
}

func showWeek(cmd *cobra.Command) {
	logger, config := setup()

	who, _ := cmd.Flags().GetString("name")
	if strings.TrimSpace(who) == "" {
		logger.Fatal("participant is required (pass --name)")
	}

	sessions, err := studylog.Load(config.StudyLog, logger)
	if err != nil {
		logger.Fatal("loading study log", zap.Error(err))
	}

	id := roster.NormalizeID(who, "")
	days := studylog.WeeklySummary(sessions, id, who, now())
	if len(days) == 0 {
		logger.Info("no study logged during the last week", zap.String("participant_id", id))
		return
	}

	if err := emit("-", outputFormat(config), func(w io.Writer, f report.Format) error {
		return report.WriteWeek(w, f, days)
	}); err != nil {
		logger.Fatal("writing weekly summary", zap.Error(err))
	}
}

func listDefaulters(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup()

	list, err := estimate(ctx, config, logger)
	if err != nil {
		logger.Fatal("estimating targets", zap.Error(err))
	}

	sessions, err := studylog.Load(config.StudyLog, logger)
	if err != nil {
		logger.Fatal("loading study log", zap.Error(err))
	}

	all, _ := cmd.Flags().GetBool("all")
	progress := progressOf(list, sessions, now(), all)

	logger.Info("weekly targets checked",
		zap.Int("participants", len(list)),
		zap.Int("sessions", len(sessions)),
		zap.Int("listed", len(progress)),
	)

	path, _ := cmd.Flags().GetString("output")
	if err := emit(path, outputFormat(config), func(w io.Writer, f report.Format) error {
		return report.WriteProgress(w, f, progress)
	}); err != nil {
		logger.Fatal("writing defaulters", zap.Error(err))
	}
}

func progressOf(list []targets.Target, sessions []studylog.Session, at time.Time, all bool) []targets.Progress {
	if all {
		return targets.Weekly(list, sessions, at)
	}
	return targets.Defaulters(list, sessions, at)
}

// estimate loads the roster and computes every participant's target.
func estimate(ctx context.Context, config *Config, logger *zap.Logger) ([]targets.Target, error) {
	r, err := loadRoster(config, logger)
	if err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config.Embedding, logger)
	if err != nil {
		return nil, err
	}

	return targets.New(embedder, config.Targets, logger).EstimateAll(ctx, r)
}

func outputFormat(config *Config) report.Format {
	if config == nil || config.Output == nil {
		return report.FormatCSV
	}

	f, err := report.ParseFormat(config.Output.Format)
	if err != nil {
		return report.FormatCSV
	}
	return f
}

// emit writes to stdout for an empty path or "-", to the file otherwise. A
// known file extension overrides the format.
func emit(path string, format report.Format, fn func(io.Writer, report.Format) error) error {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		return fn(os.Stdout, format)
	}

	f := report.FormatFor(path, format)
	return report.ToFile(path, func(w io.Writer) error { return fn(w, f) })
}
