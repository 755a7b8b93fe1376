package cmd

import (
	"errors"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/skillmatch/internal/matching"
	"github.com/spigell/skillmatch/internal/targets"
)

const (
	app = "skillmatch"
)

type Config struct {
	Roster    string           `mapstructure:"roster"`
	StateFile string           `mapstructure:"state-file"`
	StudyLog  string           `mapstructure:"study-log"`
	Matching  *MatchingConfig  `mapstructure:"matching"`
	Embedding *EmbeddingConfig `mapstructure:"embedding"`
	Targets   targets.Config   `mapstructure:"targets"`
	Output    *OutputConfig    `mapstructure:"output"`
}

type MatchingConfig struct {
	Threshold    float64 `mapstructure:"threshold"`
	Strategy     string  `mapstructure:"strategy"`
	TieBreak     string  `mapstructure:"tie-break"`
	MaxLogLength int     `mapstructure:"max-log-length"`
}

type EmbeddingConfig struct {
	Provider string        `mapstructure:"provider"`
	Local    *LocalConfig  `mapstructure:"local"`
	Gemini   *GeminiConfig `mapstructure:"gemini"`
}

type LocalConfig struct {
	Dimension int `mapstructure:"dimension"`
}

type GeminiConfig struct {
	APIKey       string `mapstructure:"api-key" json:"-"`
	APIKeyFile   string `mapstructure:"api-key-file"`
	Model        string `mapstructure:"model"`
	Dimension    int    `mapstructure:"dimension"`
	MaxRetries   int    `mapstructure:"max-retries"`
	BatchSize    int    `mapstructure:"batch-size"`
	Concurrency  int    `mapstructure:"concurrency"`
	MaxLogLength int    `mapstructure:"max-log-length"`
}

type OutputConfig struct {
	Format    string `mapstructure:"format"`
	Matches   string `mapstructure:"matches"`
	Unmatched string `mapstructure:"unmatched"`
	Summary   string `mapstructure:"summary"`
	Targets   string `mapstructure:"targets"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "skillmatch pairs learners with teachers by the similarity of their skills",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	if err := viper.BindEnv("embedding.gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}
	if err := viper.BindEnv("embedding.gemini.api-key", "GEMINI_API_KEY"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY environment variable: %v", err)
	}

	viper.SetDefault("state-file", ".skillmatch-state.json")
	viper.SetDefault("study-log", "study_log.csv")
	viper.SetDefault("matching.threshold", matching.DefaultThreshold)
	viper.SetDefault("matching.strategy", string(matching.StrategyLearnerOrder))
	viper.SetDefault("matching.tie-break", string(matching.TieBreakRosterOrder))
	viper.SetDefault("embedding.provider", providerLocal)
	viper.SetDefault("output.format", "csv")
	viper.SetDefault("output.matches", "matches.csv")
	viper.SetDefault("output.unmatched", "unmatched.csv")
	viper.SetDefault("output.summary", "summary.csv")
	viper.SetDefault("output.targets", "targets.csv")

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is skillmatch.yaml in current directory)")
	rootCmd.PersistentFlags().StringP("roster", "r", "", "roster file (.csv or .json)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("roster", rootCmd.PersistentFlags().Lookup("roster"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func initConfig() {
	// The version command needs no config.
	if versionCmd.CalledAs() != "" {
		return
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app + ".yaml")
		viper.SetConfigType("yaml")
	}

	// Flags and defaults are enough without a config file, but a broken one is fatal.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	var config *Config
	err := viper.Unmarshal(&config)
	if err != nil {
		return config, err
	}

	return config, nil
}
