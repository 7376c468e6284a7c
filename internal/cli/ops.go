package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"betpool-service/internal/config"
	"betpool-service/internal/logger"
	"betpool-service/internal/replay"
)

// NewRescoreCmd re-runs the full scoring pass for one bet.
func NewRescoreCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rescore <betID>",
		Short: "Re-derive correctness and scores for all answers of a bet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			betID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid bet id %q", args[0])
			}
			cfg, log, err := loadWithLogger(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.close()

			return svc.scoring.MarkCorrectAndScore(cmd.Context(), betID)
		},
	}
}

// NewRebuildCmd recomputes a bet's standings sequence.
func NewRebuildCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild <betID>",
		Short: "Rebuild a bet's standings sequence from its answer scores",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			betID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid bet id %q", args[0])
			}
			cfg, log, err := loadWithLogger(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			svc, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer svc.close()

			sequence, count, err := svc.tally.Rebuild(cmd.Context(), betID, time.Time{})
			if err != nil {
				return err
			}
			fmt.Printf("bet %d: sequence %d, %d rows\n", betID, sequence, count)
			return nil
		},
	}
}

// NewVerifyCmd captures the bet's persisted scoring state, replays the
// engines against the store named by --replay-config (the primary store when
// omitted), and reports every divergence.
func NewVerifyCmd(configPath *string) *cobra.Command {
	var replayConfig string
	cmd := &cobra.Command{
		Use:   "verify <betID>",
		Short: "Replay scoring for a bet and diff against the current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			betID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid bet id %q", args[0])
			}
			cfg, log, err := loadWithLogger(*configPath)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			primary, err := buildServices(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer primary.close()

			baselineHarness := replay.NewHarness(primary.scoring, primary.tally, primary.questions, primary.answers, log)
			baseline, err := baselineHarness.Capture(cmd.Context(), betID)
			if err != nil {
				return err
			}

			target := primary
			if replayConfig != "" {
				replayCfg, err := config.Load(replayConfig)
				if err != nil {
					return err
				}
				target, err = buildServices(cmd.Context(), replayCfg, log)
				if err != nil {
					return err
				}
				defer target.close()
			}

			harness := replay.NewHarness(target.scoring, target.tally, target.questions, target.answers, log)
			report, err := harness.VerifyBet(cmd.Context(), betID, baseline, time.Time{})
			if err != nil {
				return err
			}
			if report.Clean() {
				fmt.Printf("run %s: bet %d clean, %d answers checked\n", report.RunID, betID, report.Checked)
				return nil
			}
			for _, d := range report.Diffs {
				fmt.Printf("answer %d %s: want %s, got %s\n", d.AnswerID, d.Field, d.Want, d.Got)
			}
			return fmt.Errorf("bet %d: %d mismatches", betID, len(report.Diffs))
		},
	}
	cmd.Flags().StringVar(&replayConfig, "replay-config", "", "config of the isolated replay store")
	return cmd
}

func loadWithLogger(path string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, err
	}
	log, err := logger.New("betpool-service", cfg.Env)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}
