package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/ducminhle1904/pump-short-bot/cmd/common"
	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	"github.com/ducminhle1904/pump-short-bot/internal/config"
	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
	"github.com/ducminhle1904/pump-short-bot/internal/executor"
	"github.com/ducminhle1904/pump-short-bot/internal/logger"
	"github.com/ducminhle1904/pump-short-bot/internal/monitoring"
	"github.com/ducminhle1904/pump-short-bot/internal/portfolio"
	"github.com/ducminhle1904/pump-short-bot/internal/strategy"
	"github.com/ducminhle1904/pump-short-bot/pkg/data"
	"github.com/ducminhle1904/pump-short-bot/pkg/reporting"
)

// target is one symbol and the file its bars come from.
type target struct {
	symbol string
	path   string
}

type app struct {
	cfg   *config.Config
	flags *Flags

	session *logger.Session
	log     zerolog.Logger

	data    *data.Manager
	reports *reporting.ReportingManager
	// files writes per-job reports in a batch, where the console gets the batch table only.
	files *reporting.ReportingManager

	sink   monitoring.Sink
	health *monitoring.HealthChecker
	server *http.Server
}

func newApp(cfg *config.Config, flags *Flags, stdout, stderr io.Writer) (*app, error) {
	label := cfg.Backtest.Symbol
	if flags.batch() {
		label = "BATCH"
	}
	session, err := logger.New(cfg.Logging, label, cfg.Backtest.Interval, stderr)
	if err != nil {
		return nil, err
	}

	opts := reporting.OptionsFromConfig(cfg.Report)
	fileOpts := opts
	fileOpts.Console = false

	a := &app{
		cfg:     cfg,
		flags:   flags,
		session: session,
		log:     session.Logger,
		data:    data.NewManager(session.Logger),
		reports: reporting.NewReportingManager(opts, stdout, session.Logger),
		files:   reporting.NewReportingManager(fileOpts, stdout, session.Logger),
		sink:    monitoring.NopSink{},
	}

	if cfg.Monitoring.Enabled {
		if err := a.startMonitoring(); err != nil {
			session.Close()
			return nil, err
		}
	}
	return a, nil
}

// batch reports whether more than one data file or symbol was requested.
func (f *Flags) batch() bool {
	return len(common.SplitList(*f.DataFiles)) > 1 || len(common.SplitList(*f.Symbols)) > 1
}

// startMonitoring serves /metrics and /health for the lifetime of the run.
func (a *app) startMonitoring() error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	recorder, err := monitoring.NewRecorder(reg)
	if err != nil {
		return err
	}
	a.health = monitoring.NewHealthChecker()
	a.sink = monitoring.Multi(recorder, a.health)

	mux := http.NewServeMux()
	mux.Handle("/metrics", monitoring.Handler(reg))
	mux.Handle("/health", a.health)

	ln, err := net.Listen("tcp", a.cfg.Monitoring.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.cfg.Monitoring.Addr, err)
	}
	a.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error().Err(err).Msg("metrics server stopped")
		}
	}()

	a.log.Info().Str("addr", ln.Addr().String()).Msg("metrics server listening")
	return nil
}

func (a *app) Close() {
	if a.health != nil {
		a.health.Finish()
	}
	if a.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := a.server.Shutdown(ctx); err != nil {
			a.log.Warn().Err(err).Msg("metrics server shutdown")
		}
		cancel()
	}
	if err := a.session.Close(); err != nil {
		a.log.Warn().Err(err).Msg("failed to close log file")
	}
}

func (a *app) Run(ctx context.Context) error {
	targets, err := a.targets()
	if err != nil {
		return err
	}
	opts, err := a.loadOptions()
	if err != nil {
		return err
	}
	if len(targets) == 1 {
		return a.runSingle(ctx, targets[0], opts)
	}
	return a.runBatch(ctx, targets, opts)
}

// targets resolves the data files to replay: explicit -data files first,
// then symbols looked up under -data-root.
func (a *app) targets() ([]target, error) {
	if files := common.SplitList(*a.flags.DataFiles); len(files) > 1 {
		out := make([]target, len(files))
		for i, path := range files {
			out[i] = target{symbol: symbolFromPath(path), path: path}
		}
		return out, nil
	}

	if symbols := common.SplitList(*a.flags.Symbols); len(symbols) > 1 {
		out := make([]target, 0, len(symbols))
		for _, symbol := range symbols {
			path, err := a.locate(symbol)
			if err != nil {
				return nil, err
			}
			out = append(out, target{symbol: strings.ToUpper(symbol), path: path})
		}
		return out, nil
	}

	path := a.cfg.Data.File
	if path == "" {
		var err error
		if path, err = a.locate(a.cfg.Backtest.Symbol); err != nil {
			return nil, err
		}
	}
	return []target{{symbol: a.cfg.Backtest.Symbol, path: path}}, nil
}

func (a *app) locate(symbol string) (string, error) {
	path := a.data.FindDataFile(*a.flags.DataRoot, *a.flags.Exchange, symbol, a.cfg.Backtest.Interval)
	if path == "" {
		return "", boterrors.NewConfigurationError("cli", "locate_data",
			fmt.Sprintf("no data file for %s %s under %s", symbol, a.cfg.Backtest.Interval, *a.flags.DataRoot))
	}
	return path, nil
}

func (a *app) loadOptions() (data.LoadOptions, error) {
	start, end, err := a.cfg.Data.Range()
	if err != nil {
		return data.LoadOptions{}, err
	}
	opts := data.LoadOptions{Start: start, End: end}
	if *a.flags.Period != "" {
		opts.Period, _ = data.ParseTrailingPeriod(*a.flags.Period)
	}
	return opts, nil
}

func (a *app) runSingle(ctx context.Context, t target, opts data.LoadOptions) error {
	bars, err := a.data.Load(t.path, opts)
	if err != nil {
		return err
	}

	cfg := a.cfg.Backtest
	cfg.Symbol = t.symbol
	job := backtest.Job{ID: t.symbol, Config: cfg, Bars: bars}

	exec, err := a.newExecutor(job)
	if err != nil {
		return err
	}
	engine, err := backtest.NewEngine(cfg, exec, a.log)
	if err != nil {
		return err
	}
	res, err := engine.Run(ctx, bars)
	if err != nil {
		return err
	}

	_, err = a.reports.ReportResults(res)
	return err
}

func (a *app) runBatch(ctx context.Context, targets []target, opts data.LoadOptions) error {
	results := make([]backtest.JobResult, len(targets))
	jobs := make([]backtest.Job, 0, len(targets))
	slot := make(map[string]int, len(targets))

	for i, t := range targets {
		cfg := a.cfg.Backtest
		cfg.Symbol = t.symbol
		id := fmt.Sprintf("%d:%s", i+1, t.symbol)

		bars, err := a.data.Load(t.path, opts)
		if err != nil {
			a.log.Warn().Err(err).Str("job", id).Str("source", t.path).Msg("skipping job")
			results[i] = backtest.JobResult{ID: id, Config: cfg, Err: err}
			continue
		}
		slot[id] = i
		jobs = append(jobs, backtest.Job{ID: id, Config: cfg, Bars: bars})
	}

	for _, jr := range backtest.RunBatch(ctx, *a.flags.Workers, jobs, a.newExecutor, a.log) {
		results[slot[jr.ID]] = jr
		if jr.Err != nil {
			continue
		}
		if _, err := a.files.ReportResults(jr.Results); err != nil {
			return err
		}
	}

	if _, err := a.reports.ReportBatch(results); err != nil {
		return err
	}
	for _, jr := range results {
		if jr.Err == nil {
			return nil
		}
	}
	return fmt.Errorf("all %d batch jobs failed", len(results))
}

// newExecutor wires a fresh portfolio, strategy and executor for one job.
func (a *app) newExecutor(job backtest.Job) (*executor.Executor, error) {
	log := a.log.With().Str("symbol", job.Config.Symbol).Logger()

	popts := []portfolio.Option{portfolio.WithTelemetry(a.sink)}
	if len(job.Bars) > 0 {
		popts = append(popts, portfolio.WithStartTime(job.Bars[0].Timestamp))
	}
	pf, err := portfolio.New(a.cfg.Portfolio, log, popts...)
	if err != nil {
		return nil, err
	}
	strat, err := strategy.NewPumpShortStrategy(a.cfg.Strategy, log)
	if err != nil {
		return nil, err
	}
	return executor.New(pf, strat, a.cfg.Executor, log, executor.WithTelemetry(a.sink))
}

// symbolFromPath reads the symbol from data/<exchange>/<category>/<SYMBOL>/<minutes>/candles.csv
// or from the leading token of a file name such as PEPEUSDT_1h.csv.
func symbolFromPath(path string) string {
	parts := strings.Split(filepath.ToSlash(filepath.Clean(path)), "/")
	if n := len(parts); n >= 3 && parts[n-1] == "candles.csv" {
		return strings.ToUpper(parts[n-3])
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if i := strings.IndexAny(base, "_-."); i > 0 {
		base = base[:i]
	}
	return strings.ToUpper(base)
}
