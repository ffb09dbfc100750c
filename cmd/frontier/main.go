package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "frontier"
	version = "v1.4.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	if term.IsTerminal(int(os.Stderr.Fd())) {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Frontier episodic belief-adaptation engine",
		Version: version,
		Long: `Frontier learns factor-tilt and risk beliefs across trading episodes
without numeric gradient descent: it pairs completed episodes, extracts
symbolic insights from their differences, and applies bounded, explainable
updates to a per-user belief state.`,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the engine with its monitoring HTTP surface",
		Long:  "Starts the belief-adaptation service: persistence, snapshot cache, metrics, and the read-only HTTP endpoints.",
		RunE:  runServe,
	}
	serveCmd.Flags().String("config", "", "Path to YAML configuration (defaults apply when omitted)")
	serveCmd.Flags().String("addr", "", "Override server listen address")

	simulateCmd := &cobra.Command{
		Use:   "simulate",
		Short: "Drive a two-episode learning cycle in memory",
		Long:  "Runs two canned episodes through the full extract/update/commit path against the in-memory store and prints the cycle result.",
		RunE:  runSimulate,
	}
	simulateCmd.Flags().String("user", "demo", "User ID for the simulated episodes")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}
