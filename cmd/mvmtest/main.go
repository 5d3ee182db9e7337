// Command mvmtest runs every end-to-end case directory under the given root
// (default: ./test/end-to-end/artifacts) and exits non-zero if any fails.
package main

import (
	"context"
	"os"

	"github.com/rs/zerolog"

	"github.com/mvmhost/mvmhost"
	"github.com/mvmhost/mvmhost/config"
	"github.com/mvmhost/mvmhost/internal/testcase"
)

const defaultRoot = "./test/end-to-end/artifacts"

func main() {
	root := defaultRoot
	if len(os.Args) > 1 {
		root = os.Args[1]
	}
	cfg, err := config.Load(".")
	if err != nil {
		fatal := zerolog.New(os.Stderr)
		fatal.Fatal().Err(err).Msg("load config")
	}
	os.Exit(runAll(context.Background(), root, cfg, cfg.NewLogger()))
}

func runAll(ctx context.Context, root string, cfg *config.Config, logger zerolog.Logger) int {
	cases, err := testcase.Discover(root)
	if err != nil {
		logger.Error().Err(err).Msg("discover cases")
		return 1
	}

	var passed, failed, skipped int
	for _, c := range cases {
		log := logger.With().Str("case", c.Name).Logger()
		res, err := testcase.Run(ctx, c,
			mvmhost.WithConfig(cfg.Runtime),
			mvmhost.WithLogger(log),
			mvmhost.WithErrorHandler(nil),
		)
		switch {
		case err != nil:
			failed++
			log.Error().Err(err).Msg("case could not run")
		case res.Skipped:
			skipped++
			log.Warn().Msg("skipped")
		case !res.Passed():
			failed++
			for _, f := range res.Failures {
				log.Error().Msg(f)
			}
		default:
			passed++
			log.Info().Uint64("host_calls", res.Metrics.HostCalls).Msg("passed")
		}
	}

	logger.Info().Int("passed", passed).Int("failed", failed).Int("skipped", skipped).Msg("done")
	if failed > 0 {
		return 1
	}
	return 0
}
