package main

import (
	"context"
	"fmt"

	"browserPilot/internal/agent"
	"browserPilot/internal/cli"
	"browserPilot/internal/config"
	"browserPilot/internal/conversation"
	"browserPilot/internal/database"
	"browserPilot/internal/llm"
	"browserPilot/internal/logger"
	"browserPilot/internal/migrations"
	"browserPilot/internal/server"
	"browserPilot/internal/transport"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Консоль оператора и HTTP-управление агентом",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			defer log.Sync()
			return runConsole(cmd.Context(), cfg, log)
		},
	}
}

func runConsole(ctx context.Context, cfg *config.Cfg, log *logger.Zap) error {
	var repo *database.TaskRepository
	if cfg.Database.Enabled() {
		if err := migrations.Run(cfg, log); err != nil {
			return err
		}
		db, err := database.New(cfg, log)
		if err != nil {
			return err
		}
		defer db.Close(log)
		repo = database.NewTaskRepository(db.DB)
	} else {
		log.Warn("БД не настроена: история задач и настройки не сохраняются")
	}

	provider, err := llm.NewProvider(ctx, llm.Config{
		Provider:    cfg.LLM.Provider,
		APIKey:      cfg.LLM.Key,
		Model:       cfg.LLM.Model,
		BaseURL:     cfg.LLM.BaseURL,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	if err != nil {
		return fmt.Errorf("ошибка инициализации модели: %w", err)
	}

	clientOpts := llm.ClientOptions{
		RequestsPerMinute: cfg.LLM.RequestsPerMinute,
		TokensPerHour:     cfg.LLM.TokensPerHour,
		MaxTokens:         cfg.LLM.MaxTokens,
	}
	// nil-указатель в интерфейсе не равен nil, поэтому зависимости от БД задаются явно
	var (
		store    agent.Store
		settings agent.SettingsStore
		history  server.History
		deps     cli.Deps
	)
	if repo != nil {
		clientOpts.Logger = repo
		store, settings, history = repo, repo, repo
		deps.History, deps.LLMLogs = repo, repo
	}
	gen := llm.NewClient(provider, clientOpts, log.Logger)

	orch := agent.NewOrchestrator(gen, nil, store, estimator(cfg.Agent.Encoding, log.Logger), agent.Config{
		MaxSteps:        cfg.Agent.MaxSteps,
		Retries:         cfg.Agent.Retries,
		RetryDelay:      cfg.Agent.RetryDelay,
		DecisionTimeout: cfg.Agent.DecisionTimeout,
		Domains:         agent.DefaultDomainPolicy(),
		Conversation: conversation.Config{
			Budget:           cfg.Agent.ContextBudget,
			SummarizeHistory: cfg.Agent.SummarizeHistory,
		},
	}, log.Logger)

	ctl := agent.NewController(orch, settings, transport.ClientConfig{
		ReconnectStep:        cfg.Transport.ReconnectStep,
		MaxReconnectAttempts: cfg.Transport.MaxReconnectAttempts,
	}, domOptions(cfg.DOM), log.Logger)
	defer ctl.Close()

	deps.Control = ctl
	deps.Gen = gen
	console := cli.New(deps, log)
	orch.OnComplete(console.TaskFinished)

	if cfg.Transport.Address != "" {
		if err := ctl.Connect(ctx, cfg.Transport.Address); err != nil {
			log.Warn("Не удалось подключиться к странице", zap.String("address", cfg.Transport.Address), zap.Error(err))
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.New(cfg, log.Logger, ctl, history).Run(gctx)
	})
	g.Go(func() error {
		// выход из консоли завершает и HTTP-сервер
		defer cancel()
		return console.Run(gctx)
	})
	return g.Wait()
}

func estimator(encoding string, log *zap.Logger) conversation.Estimator {
	if encoding == "" {
		return conversation.DefaultEstimator(log)
	}
	est, err := conversation.NewTiktokenEstimator(encoding)
	if err != nil {
		log.Warn("Токенизатор недоступен, используется оценка по символам", zap.Error(err))
		return conversation.CharEstimator{CharsPerToken: 4}
	}
	return est
}
