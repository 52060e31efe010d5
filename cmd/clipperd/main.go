// Command clipperd is the clipforge daemon: it loads configuration, probes
// hardware acceleration once, restores the job table from its journal, wires
// every pipeline component, and serves the HTTP surface described in
// spec.md §6 until interrupted. Grounded on the teacher's cmd/spindled/
// main.go and bootstrap.go.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gofrs/flock"

	"clipforge/internal/api"
	"clipforge/internal/artifact"
	"clipforge/internal/config"
	"clipforge/internal/fetch"
	"clipforge/internal/hwprofile"
	"clipforge/internal/job"
	"clipforge/internal/logging"
	"clipforge/internal/mediaprobe"
	"clipforge/internal/pipeline"
	"clipforge/internal/render"
	"clipforge/internal/score"
	"clipforge/internal/transcribe"
	"clipforge/internal/visual"
)

const (
	exitOK                = 0
	exitConfigError       = 1
	exitRuntimeError      = 2
	exitCancelledBySignal = 130
)

func main() {
	os.Exit(run())
}

// journalPath returns the job journal's database path, derived from the
// configured log directory (the journal is operational state, not part of
// spec.md §4.J's fixed uploads/outputs layout).
func journalPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "clipforge.db")
	}
	return filepath.Join(cfg.Paths.LogDir, "clipforge.db")
}

// lockPath returns the single-instance lock file's path, alongside the
// job journal in the log directory.
func lockPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "clipperd.lock")
	}
	return filepath.Join(cfg.Paths.LogDir, "clipperd.lock")
}

func run() int {
	cfg, resolvedPath, existed, err := config.Load("")
	if err != nil {
		log.Printf("load config: %v", err)
		return exitConfigError
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Printf("ensure directories: %v", err)
		return exitConfigError
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		log.Printf("init logger: %v", err)
		return exitConfigError
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	instanceLock := flock.New(lockPath(cfg))
	acquired, err := instanceLock.TryLock()
	if err != nil {
		log.Printf("acquire instance lock: %v", err)
		return exitConfigError
	}
	if !acquired {
		log.Print("another clipperd instance is already running")
		return exitConfigError
	}
	defer func() {
		if err := instanceLock.Unlock(); err != nil {
			logger.Warn("failed to release instance lock", logging.Error(err))
		}
	}()

	if existed {
		logger.Info("loaded configuration", logging.String("path", resolvedPath))
	} else {
		logger.Info("no configuration file found, using defaults", logging.String("path", resolvedPath))
	}

	journal, err := job.Open(journalPath(cfg))
	if err != nil {
		logger.Error("open job journal", logging.Error(err))
		return exitConfigError
	}
	defer journal.Close()

	table := job.NewTable(journal)
	if err := table.Restore(ctx); err != nil {
		logger.Error("restore job table", logging.Error(err))
		return exitRuntimeError
	}

	store := artifact.New(cfg.Paths.DataDir)

	hwProber := hwprofile.New(cfg.FFmpegBinary())
	profile := hwProber.Probe(ctx)
	logger.Info("hardware profile detected",
		logging.Bool("accelerator_detected", profile.AcceleratorDetected),
		logging.String("accelerator_name", profile.AcceleratorName),
		logging.String("decoder_precision", profile.DecoderPrecision))

	lexicon, err := score.LoadEmbedded(cfg.Transcriber.Lang)
	if err != nil {
		logger.Error("load scoring lexicon", logging.Error(err))
		return exitConfigError
	}

	prober := mediaprobe.New(cfg.FFprobeBinary())
	transcriber := transcribe.New("whisper", cfg.FFmpegBinary())
	analyzer := visual.New(cfg.FFprobeBinary(), nil)
	scorer := score.New(lexicon)
	renderer := render.New(cfg.FFmpegBinary())
	fetcher := fetch.New("yt-dlp")

	coordinator := pipeline.New(
		table, store, prober, transcriber, analyzer, scorer, renderer,
		cfg.Processing.Concurrency, time.Duration(cfg.Processing.CooldownSeconds)*time.Second, logger,
	)
	coordinator.Start(ctx)
	defer coordinator.Stop()

	server := api.New(cfg, profile, coordinator, fetcher, prober, store, logger)
	if err := server.Start(ctx); err != nil {
		logger.Error("start api server", logging.Error(err))
		return exitRuntimeError
	}
	defer server.Stop()

	<-ctx.Done()
	logger.Info("clipperd shutting down")
	if ctx.Err() != nil {
		return exitCancelledBySignal
	}
	return exitOK
}
