package cmd

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/skillmatch/internal/logger"
	"github.com/spigell/skillmatch/internal/roster"
	"github.com/spigell/skillmatch/internal/snapshot"
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Print the roster digest and whether it changed since the last pass",
	Run: func(_ *cobra.Command, _ []string) {
		printDigest()
	},
}

func init() {
	rootCmd.AddCommand(digestCmd)
}

func printDigest() {
	logger, err := logger.New(viper.GetBool("json"), viper.GetBool("debug"))
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}

	config, err := getConfig()
	if err != nil || config == nil {
		logger.Fatal("getting a config", zap.Error(err))
	}

	r, err := loadRoster(config, logger)
	if err != nil {
		logger.Fatal("loading roster", zap.Error(err))
	}

	digest := roster.Digest(r)
	fmt.Println(digest)

	stateFile := strings.TrimSpace(config.StateFile)
	if stateFile == "" {
		return
	}

	prev, err := snapshot.FromFile(stateFile)
	if err != nil {
		logger.Fatal("reading state file", zap.String("filename", stateFile), zap.Error(err))
	}

	previous := ""
	if prev != nil {
		previous = prev.Digest
	}

	logger.Info("compared with last pass",
		zap.String("filename", stateFile),
		zap.Bool("changed", roster.HasChanged(r, previous)),
	)
}
