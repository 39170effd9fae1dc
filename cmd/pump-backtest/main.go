// Command pump-backtest replays historical bars through the pump-short
// strategy and reports the outcome.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/cmd/common"
	"github.com/ducminhle1904/pump-short-bot/internal/config"
)

const appName = "pump-backtest"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// run returns the process exit code: 0 on success, 1 when the run fails and
// 2 for command line errors.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	flags := NewFlags(fs)

	usage := common.NewUsageFormatter(appName, "Backtest the pump-short strategy on historical bars").
		AddExample(appName+" -data data/bybit/linear/PEPEUSDT/60/candles.csv -symbol PEPEUSDT -interval 1h", "Single file").
		AddExample(appName+" -symbol PEPEUSDT,WIFUSDT -interval 1h -period 90d", "Batch over symbols found under -data-root").
		AddExample(appName+" -config configs/pump.toml -formats csv,xlsx,json -metrics", "Config file, every report and a metrics endpoint")
	fs.Usage = func() { usage.PrintUsage(stderr, fs) }

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *flags.Version {
		common.PrintVersion(stdout, appName)
		return 0
	}
	if *flags.Help {
		usage.PrintUsage(stdout, fs)
		return 0
	}
	if err := flags.Validate(); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}

	boot := zerolog.New(zerolog.ConsoleWriter{Out: stderr}).With().Timestamp().Logger()
	if err := common.LoadEnvFile(*flags.EnvFile, boot); err != nil {
		boot.Error().Err(err).Msg("failed to load env file")
		return 1
	}

	cfg, err := config.Load(*flags.ConfigFile)
	if err != nil {
		boot.Error().Err(err).Msg("failed to load configuration")
		return 1
	}
	flags.Apply(cfg)
	if err := cfg.Validate(); err != nil {
		boot.Error().Err(err).Msg("invalid configuration")
		return 1
	}

	a, err := newApp(cfg, flags, stdout, stderr)
	if err != nil {
		boot.Error().Err(err).Msg("failed to start")
		return 1
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		a.log.Error().Err(err).Msg("backtest failed")
		return 1
	}
	return 0
}
