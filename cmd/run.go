package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/embedding"
	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/report"
	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/snapshot"
)

const (
	PromptSave       = "Save results"
	PromptSummary    = "Show summary"
	PromptByTeachers = "Report by teachers"
	PromptLookup     = "Find a learner's match"
	PromptDump       = "Dump results to file"
	PromptExit       = "Exit"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptSave, PromptSummary, PromptByTeachers, PromptLookup, PromptDump, PromptExit},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a matching pass over the roster",
	Run: func(cmd *cobra.Command, _ []string) {
		run(cmd)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolP("auto-approve", "y", false, "save results without asking")
	runCmd.Flags().BoolP("force", "f", false, "run a new pass even if the roster is unchanged since the last one")
	runCmd.Flags().Float64P("threshold", "t", matching.DefaultThreshold, "minimum similarity for a pairing, within [0, 1]")
	runCmd.Flags().String("strategy", string(matching.StrategyLearnerOrder), "assignment strategy: learner-order or global")
	runCmd.Flags().StringP("state-file", "s", "", "file keeping the previous pass. Empty disables the re-run check.")

	viper.BindPFlag("matching.threshold", runCmd.Flags().Lookup("threshold"))
	viper.BindPFlag("matching.strategy", runCmd.Flags().Lookup("strategy"))
	viper.BindPFlag("state-file", runCmd.Flags().Lookup("state-file"))
}

// run is the main command for the cli.
func run(cmd *cobra.Command) {
	ctx := context.Background()

	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	if config == nil {
		logger.Fatal("config is required")
	}

	logger.Info("starting the skillmatch", zap.String("version", version))

	// do not bother error since there is a valid parseable config
	pretty, _ := json.MarshalIndent(config, "", "  ")
	logger.Debug(fmt.Sprintf("starting with config: \n %s", pretty))

	r, err := loadRoster(config, logger)
	if err != nil {
		logger.Fatal("loading roster", zap.Error(err))
	}

	// A roster without the required columns cannot be matched at all.
	if err := r.Validate(); err != nil {
		logger.Fatal("matching could not run", zap.Error(err))
	}

	embedder, err := newEmbedder(config.Embedding, logger)
	if err != nil {
		logger.Fatal("building embedder", zap.Error(err))
	}

	matcher, err := newMatcher(config.Matching, embedder, logger)
	if err != nil {
		logger.Fatal("building matcher", zap.Error(err))
	}

	force := cmd.Flag("force").Value.String() == "true"
	res, err := matchOrReuse(ctx, matcher, embedder, r, config.StateFile, force, logger)
	if err != nil {
		logger.Fatal("matching could not run", zap.Error(err))
	}

	for _, u := range res.Unmatched {
		logger.Info("no match found yet",
			zap.String("learner_id", u.LearnerID),
			zap.String("reason", u.Reason),
		)
	}

	logger.Info("matching result",
		zap.String("pass_id", res.PassID),
		zap.Int("matches", len(res.Matches)),
		zap.Int("unmatched", len(res.Unmatched)),
	)

	if cmd.Flag("auto-approve").Value.String() == "true" {
		if err := saveResults(config.Output, r, res, logger); err != nil {
			logger.Fatal("saving results", zap.Error(err))
		}
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(action, logger, config, r, res); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(action string, logger *zap.Logger, config *Config, r *roster.Roster, res *matching.Result) error {
	switch action {
	case PromptSave:
		return saveResults(config.Output, r, res, logger)
	case PromptExit:
		logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptSummary:
		pretty, _ := json.MarshalIndent(report.Summarize(r, res), "", "  ")
		logger.Info(string(pretty), zap.Int("participants", r.Len()))
		return nil
	case PromptByTeachers:
		pretty, _ := json.MarshalIndent(report.ByTeacher(res), "", "  ")
		logger.Info(string(pretty), zap.Int("matches", len(res.Matches)))
		return nil
	case PromptLookup:
		return lookupLearner(logger, res)
	case PromptDump:
		filename, err := report.DumpToTmpFile(res)
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func lookupLearner(logger *zap.Logger, res *matching.Result) error {
	idPrompt := promptui.Prompt{
		Label: "Learner email or name",
		Validate: func(s string) error {
			if strings.TrimSpace(s) == "" {
				return errors.New("value is required")
			}
			return nil
		},
	}

	input, err := idPrompt.Run()
	if err != nil {
		return err
	}

	id := roster.NormalizeID(input, "")
	if m := res.ForLearner(id); m != nil {
		logger.Info("learner is paired",
			zap.String("learner_id", m.LearnerID),
			zap.String("teacher_id", m.TeacherID),
			zap.Float64("confidence", m.Confidence),
			zap.String("explanation", m.Explanation),
		)
		return nil
	}

	if u := res.UnmatchedFor(id); u != nil {
		logger.Info("no match found yet", zap.String("learner_id", u.LearnerID), zap.String("reason", u.Reason))
		return nil
	}

	logger.Info("learner is not part of this pass", zap.String("learner_id", id))
	return nil
}

func loadRoster(config *Config, logger *zap.Logger) (*roster.Roster, error) {
	path := strings.TrimSpace(config.Roster)
	if path == "" {
		return nil, errors.New("roster file is not configured (set roster or pass --roster)")
	}

	r, err := roster.Load(path, logger)
	if err != nil {
		return nil, err
	}

	logger.Info("roster loaded", zap.String("path", path), zap.Int("participants", r.Len()))
	return r, nil
}

func newMatcher(cfg *MatchingConfig, e embedding.Embedder, logger *zap.Logger) (*matching.Matcher, error) {
	if cfg == nil {
		cfg = &MatchingConfig{Threshold: matching.DefaultThreshold}
	}

	strategy, err := matching.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	tieBreak, err := matching.ParseTieBreak(cfg.TieBreak)
	if err != nil {
		return nil, err
	}

	return matching.New(e,
		matching.WithThreshold(cfg.Threshold),
		matching.WithStrategy(strategy),
		matching.WithTieBreak(tieBreak),
		matching.WithMaxLogLength(cfg.MaxLogLength),
		matching.WithLogger(logger),
	)
}

// matchOrReuse runs a pass unless the state file holds a result for the same
// roster and parameters. A fresh result replaces the state file.
func matchOrReuse(ctx context.Context, m *matching.Matcher, e embedding.Embedder, r *roster.Roster, stateFile string, force bool, logger *zap.Logger) (*matching.Result, error) {
	digest := roster.Digest(r)
	stateFile = strings.TrimSpace(stateFile)

	if stateFile != "" && !force {
		prev, err := snapshot.FromFile(stateFile)
		if err != nil {
			logger.Warn("ignoring unreadable state file", zap.String("filename", stateFile), zap.Error(err))
		}

		if prev.Reusable(digest, m.Threshold(), string(m.Strategy()), string(m.TieBreak()), e.Model()) {
			logger.Info("roster unchanged since last pass, reusing its result",
				zap.String("digest", digest),
				zap.String("pass_id", prev.Result.PassID),
			)
			return prev.Result, nil
		}
	}

	res, err := m.Run(ctx, r)
	if err != nil {
		return nil, err
	}

	if stateFile != "" {
		if err := snapshot.New(digest, res).ToFile(stateFile); err != nil {
			logger.Warn("saving state file", zap.String("filename", stateFile), zap.Error(err))
		} else {
			logger.Debug("state file updated", zap.String("filename", stateFile), zap.String("digest", digest))
		}
	}

	return res, nil
}

func saveResults(cfg *OutputConfig, r *roster.Roster, res *matching.Result, logger *zap.Logger) error {
	if cfg == nil {
		cfg = &OutputConfig{}
	}

	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		return err
	}

	updated := r.ApplyMatched(res.MatchedIDs())
	summary := report.Summarize(updated, res)

	outputs := []struct {
		path  string
		write func(io.Writer, report.Format) error
	}{
		{cfg.Matches, func(w io.Writer, f report.Format) error { return report.WriteMatches(w, f, res.Matches) }},
		{cfg.Unmatched, func(w io.Writer, f report.Format) error { return report.WriteUnmatched(w, f, res.Unmatched) }},
		{cfg.Summary, func(w io.Writer, f report.Format) error { return report.WriteSummary(w, f, summary) }},
	}

	for _, out := range outputs {
		path := strings.TrimSpace(out.path)
		if path == "" {
			continue
		}

		f := report.FormatFor(path, format)
		if err := report.ToFile(path, func(w io.Writer) error { return out.write(w, f) }); err != nil {
			return err
		}
		logger.Info("results saved", zap.String("filename", path), zap.String("format", string(f)))
	}

	return nil
}
