package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nadmax/img2md/internal/artifact"
	"github.com/nadmax/img2md/internal/backend"
	"github.com/nadmax/img2md/internal/config"
	"github.com/nadmax/img2md/internal/logging"
	"github.com/nadmax/img2md/internal/metrics"
	"github.com/nadmax/img2md/internal/notify"
	"github.com/nadmax/img2md/internal/prompt"
	"github.com/nadmax/img2md/internal/report"
	"github.com/nadmax/img2md/internal/scheduler"
	"github.com/nadmax/img2md/internal/source"
	"github.com/nadmax/img2md/internal/task"
	"github.com/nadmax/img2md/internal/worker"
)

const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
	exitAbort  = 130
)

func main() {
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "Interrupt received, waiting for in-flight conversions. Press Ctrl+C again to abort.")
		<-sigChan
		os.Exit(exitAbort)
	}()

	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

type cliFlags struct {
	configPath  string
	dir         string
	backend     string
	model       string
	out         string
	suffix      string
	concurrency int
	report      string
	mock        bool
	dryRun      bool
	logFile     bool
	set         map[string]bool
}

func parseFlags(args []string, stderr io.Writer) (cliFlags, error) {
	var f cliFlags
	fs := flag.NewFlagSet("img2md", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&f.configPath, "config", "", "path to a YAML configuration file")
	fs.StringVar(&f.dir, "dir", "", "directory containing the images (default: current directory)")
	fs.StringVar(&f.backend, "backend", "", "inference backend: "+strings.Join(backend.Providers(), ", "))
	fs.StringVar(&f.model, "model", "", "model name (default: provider default)")
	fs.StringVar(&f.out, "out", "", "output directory, relative to -dir unless absolute (default: beside each image)")
	fs.StringVar(&f.suffix, "suffix", "", "suffix appended to each artifact stem, e.g. _popis")
	fs.IntVar(&f.concurrency, "concurrency", 0, "maximum concurrent backend calls")
	fs.StringVar(&f.report, "report", "", "directory for the per-file run report")
	fs.BoolVar(&f.mock, "mock", false, "use the mock backend")
	fs.BoolVar(&f.dryRun, "dry-run", false, "list the images and artifact paths without converting")
	fs.BoolVar(&f.logFile, "log-file", false, "also write logs to image_processing_<timestamp>.log")

	if err := fs.Parse(args); err != nil {
		return f, err
	}
	if fs.NArg() > 0 {
		return f, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// applyFlags overrides cfg with the flags given explicitly on the command line.
func applyFlags(cfg *config.Config, f cliFlags) {
	if f.set["dir"] {
		cfg.InputDir = f.dir
	}
	if f.set["backend"] {
		// A key loaded for another provider is not reused.
		if backend.Canonical(f.backend) != backend.Canonical(cfg.Backend) {
			cfg.APIKey = os.Getenv("IMG2MD_API_KEY")
		}
		cfg.Backend = f.backend
		cfg.ResolveAPIKey()
	}
	if f.mock {
		cfg.Backend = backend.ProviderMock
	}
	if f.set["model"] {
		cfg.Model = f.model
	}
	if f.set["out"] {
		cfg.OutputDir = f.out
	}
	if f.set["suffix"] {
		cfg.OutputSuffix = f.suffix
	}
	if f.set["concurrency"] {
		cfg.Concurrency = f.concurrency
	}
	if f.set["report"] {
		cfg.ReportDir = f.report
	}
	if f.logFile {
		cfg.LogFile = true
	}
}

func printBackendHint(w io.Writer, name string, err error) {
	switch {
	case errors.Is(err, backend.ErrUnknownProvider):
		fmt.Fprintf(w, "Choose a backend with -backend: %s\n", strings.Join(backend.Providers(), ", "))
	case errors.Is(err, backend.ErrMissingAPIKey) && backend.RequiresAPIKey(name):
		if env := config.KeyEnv(name); env != "" {
			fmt.Fprintf(w, "Set %s, IMG2MD_API_KEY or api_key in the config file\n", env)
			return
		}
		fmt.Fprintln(w, "Set IMG2MD_API_KEY or api_key in the config file")
	}
}

func outputDir(cfg config.Config) string {
	if cfg.OutputDir == "" || filepath.IsAbs(cfg.OutputDir) {
		return cfg.OutputDir
	}
	return filepath.Join(cfg.InputDir, cfg.OutputDir)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	f, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return exitConfig
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitConfig
	}
	applyFlags(&cfg, f)
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitConfig
	}

	logger := logging.New(logging.Options{
		Level:   cfg.LogLevel,
		Console: stderr,
		ToFile:  cfg.LogFile,
		Dir:     cfg.LogDir,
	})
	defer func() {
		if err := logger.Close(); err != nil {
			fmt.Fprintf(stderr, "failed to close log file: %v\n", err)
		}
	}()

	instructions, err := prompt.Load(cfg.PromptPath)
	if err != nil {
		logger.Error("configuration error", "error", err)
		return exitConfig
	}

	b, err := backend.New(backend.Options{
		Provider: cfg.Backend,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
		Timeout:  cfg.Timeout,
		Logger:   logger.Logger,
	})
	if err != nil {
		logger.Error("configuration error", "error", err)
		printBackendHint(stderr, cfg.Backend, err)
		return exitConfig
	}

	extensions := cfg.Extensions
	if len(extensions) == 0 {
		extensions = backend.Extensions(cfg.Backend)
	}

	tasks, err := source.Enumerate(cfg.InputDir, extensions)
	if err != nil {
		logger.Error("cannot list input directory", "dir", cfg.InputDir, "error", err)
		return exitConfig
	}

	writer := artifact.NewWriter(outputDir(cfg), cfg.OutputSuffix)
	if len(tasks) == 0 {
		fmt.Fprintf(stdout, "No images found in %s (extensions: %s)\n", cfg.InputDir, strings.Join(extensions, ", "))
		return exitOK
	}

	if f.dryRun {
		fmt.Fprintf(stdout, "Found %d images in %s:\n", len(tasks), cfg.InputDir)
		for _, t := range tasks {
			fmt.Fprintf(stdout, "  %s -> %s\n", t.DisplayName, writer.Path(t.SourcePath))
		}
		return exitOK
	}

	fmt.Fprintf(stdout, "Found %d images, converting with %s (concurrency %d)\n", len(tasks), b.Name(), cfg.Concurrency)

	sampling := backend.Sampling{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		ReasoningEffort: cfg.ReasoningEffort,
	}
	w := worker.NewWorker(b, instructions, sampling, logger.Logger)
	s := scheduler.NewScheduler(w, writer, cfg.Concurrency, logger.Logger)
	s.SetProgress(func(done, total int, r task.Result) {
		status := "ok"
		if !r.OK() {
			status = fmt.Sprintf("FAILED (%s)", r.Kind)
		}
		fmt.Fprintf(stdout, "[%d/%d] %s %s\n", done, total, r.Task.DisplayName, status)
	})

	summary := s.Run(ctx, tasks)
	location := writer.Location(cfg.InputDir)
	if err := summary.Report(stdout, location); err != nil {
		logger.Error("failed to print summary", "error", err)
	}

	if cfg.MetricsFile != "" {
		if err := metrics.WriteTextfile(cfg.MetricsFile); err != nil {
			logger.Error("failed to write metrics file", "path", cfg.MetricsFile, "error", err)
		}
	}

	if cfg.ReportDir != "" {
		path, err := report.Save(cfg.ReportDir, cfg.ReportFormat, summary, time.Now())
		if err != nil {
			logger.Error("failed to write run report", "dir", cfg.ReportDir, "error", err)
		} else {
			logger.Info("run report written", "path", path)
		}
	}

	if cfg.Notify.Enabled() {
		sendSummary(cfg.Notify, summary, location, logger)
	}

	if summary.Failed > 0 {
		return exitFailed
	}
	return exitOK
}

func sendSummary(cfg config.Notify, summary *task.Summary, location string, logger *logging.Logger) {
	n, err := notify.NewNotifier(notify.Options{
		APIKey:      cfg.SendGridAPIKey,
		Host:        cfg.SendGridHost,
		FromName:    cfg.FromName,
		FromAddress: cfg.FromAddress,
		To:          cfg.To,
	})
	if err != nil {
		logger.Error("summary email not sent", "error", err)
		return
	}
	if err := n.Send(summary, location); err != nil {
		logger.Error("summary email not sent", "error", err)
		return
	}
	logger.Info("summary email sent", "recipients", len(cfg.To))
}
