package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"browserPilot/internal/config"
	"browserPilot/internal/dom"
	"browserPilot/internal/logger"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "browser-pilot",
		Short:         "Агент, выполняющий задачи в браузере по решениям модели",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newConsoleCmd(), newPageCmd(), newSnapshotCmd())
	return root
}

// setup загружает конфигурацию и создаёт логгер приложения.
func setup() (*config.Cfg, *logger.Zap, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}

	log, err := logger.New(cfg.Logger.Env, cfg.Logger.Level, logger.WithFile(logger.File{
		Path:       cfg.Logger.File,
		MaxSizeMB:  cfg.Logger.MaxSizeMB,
		MaxBackups: cfg.Logger.MaxBackups,
	}))
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// domOptions накладывает настройки из окружения на значения по умолчанию.
func domOptions(c config.DOM) dom.Options {
	opts := dom.DefaultOptions()
	opts.HighlightElements = c.HighlightElements
	opts.ViewportExpansion = c.ViewportExpansion
	opts.Debug = c.Debug
	if len(c.IncludedAttributes) > 0 {
		opts.IncludedAttributes = c.IncludedAttributes
	}
	return opts
}
