package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"browserPilot/internal/browser"
	"browserPilot/internal/config"
	"browserPilot/internal/dom"
	"browserPilot/internal/logger"
	"browserPilot/internal/pagehost"
	"browserPilot/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newPageCmd() *cobra.Command {
	var startURL string
	cmd := &cobra.Command{
		Use:   "page",
		Short: "Запустить браузер и принимать подключение агента",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			if startURL != "" {
				cfg.Browser.StartURL = startURL
			}
			return runPage(cmd.Context(), cfg, log)
		},
	}
	cmd.Flags().StringVarP(&startURL, "url", "u", "", "начальная страница")
	return cmd
}

func runPage(ctx context.Context, cfg *config.Cfg, log *logger.Zap) error {
	br := browser.New(browser.Config{
		Headless:     cfg.Browser.Headless,
		UserDataDir:  cfg.Browser.UserDataDir,
		BrowsersPath: cfg.Browser.BrowsersPath,
		Display:      cfg.Browser.Display,
	}, log.Logger)
	defer func() {
		if err := br.Close(); err != nil {
			log.Warn("Ошибка закрытия браузера", zap.Error(err))
		}
	}()

	builder := dom.NewBuilder(domOptions(cfg.DOM), log.Logger)
	host := pagehost.New(br, builder, pagehost.Config{}, log.Logger)
	channel := transport.NewServer(host, log.Logger)
	defer channel.Close()
	host.Attach(channel)

	if err := br.Launch(ctx, browser.Events{
		OnMutation:   host.Mutated,
		OnNavigation: host.Navigated,
	}); err != nil {
		return err
	}
	if err := br.Navigate(ctx, cfg.Browser.StartURL); err != nil {
		log.Warn("Не удалось открыть начальную страницу", zap.String("url", cfg.Browser.StartURL), zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Browser.Listen,
		Handler:           channel,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return host.Run(gctx)
	})
	g.Go(func() error {
		log.Info("Страница ожидает подключения агента", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
