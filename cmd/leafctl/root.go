package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	aiapp "github.com/bryanwahyu/leafdoctor/internal/application/ai"
	galleryapp "github.com/bryanwahyu/leafdoctor/internal/application/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/config"
	"github.com/bryanwahyu/leafdoctor/internal/domain/ai"
	"github.com/bryanwahyu/leafdoctor/internal/domain/gallery"
	"github.com/bryanwahyu/leafdoctor/internal/infra/ai/openai"
	"github.com/bryanwahyu/leafdoctor/internal/infra/backend"
	"github.com/bryanwahyu/leafdoctor/internal/infra/persistence"
	"github.com/bryanwahyu/leafdoctor/internal/pkg/logger"
)

// Set at build time with -ldflags "-X main.version=...".
var version = "dev"

// app holds what the subcommands share. It is populated by the root
// command's pre-run and released in its post-run.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	log     *zap.Logger
	gallery *galleryapp.Service

	// newClient builds the inference client; tests replace it.
	newClient func(cfg *config.Config) ai.Client

	closers []func() error
}

func newApp() *app {
	return &app{newClient: openaiClient}
}

func openaiClient(cfg *config.Config) ai.Client {
	return openai.NewClient(openai.Config{
		APIKey:     cfg.AI.APIKey,
		BaseURL:    cfg.AI.BaseURL,
		Model:      cfg.AI.Model,
		MaxTokens:  cfg.AI.MaxTokens,
		HTTPClient: &http.Client{Timeout: cfg.AI.Timeout},
	})
}

// RootCommand creates and returns the root command
func RootCommand(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "leafctl",
		Short:         "LeafDoctor command line client",
		Long:          "Diagnose plant leaf photos and manage the saved diagnosis gallery.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&a.configPath, "config", "c", os.Getenv("CONFIG_PATH"), "Path to config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Override log level: debug, info, warn, error")

	versionCmd := versionCommand()
	rootCmd.AddCommand(
		analyzeCommand(a),
		galleryCommand(a),
		versionCmd,
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == versionCmd.Name() {
			return nil
		}
		return a.setup(cmd)
	}
	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return a.close()
	}

	return rootCmd
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	a.cfg = cfg

	log, err := logger.NewConsole(cfg.Log.Level)
	if err != nil {
		return err
	}
	a.log = log

	store, closeStore, err := backend.Open(cmd.Context(), cfg.Storage, cfg.MySQLDSN(), log)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closeStore)

	repo, err := persistence.NewGalleryRepository(store, persistence.Options{
		Key:      cfg.Storage.Key,
		Compress: cfg.Storage.Compress,
	})
	if err != nil {
		return err
	}
	a.closers = append(a.closers, func() error { repo.Close(); return nil })

	loc, _ := cfg.Location()
	a.gallery = galleryapp.NewService(repo, log.Named("gallery"), galleryapp.WithLocation(loc))
	if err := a.gallery.Load(cmd.Context()); err != nil && !errors.Is(err, gallery.ErrCorrupt) {
		return err
	}
	return nil
}

func (a *app) analyzer() ai.Client {
	return aiapp.NewService(a.newClient(a.cfg), a.log.Named("ai"), nil)
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	if a.log != nil {
		_ = a.log.Sync()
	}
	return errors.Join(errs...)
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the leafctl version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "leafctl %s\n", version)
		},
	}
}
