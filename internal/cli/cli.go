package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"browserPilot/internal/agent"
	"browserPilot/internal/cli/commands"
	"browserPilot/internal/cli/ui"
	"browserPilot/internal/llm"
	"browserPilot/internal/logger"

	"github.com/chzyer/readline"
	"go.uber.org/zap"
)

type Deps struct {
	Control commands.Control
	History commands.History // nil без БД
	LLMLogs commands.LLMLogs // nil без БД
	Gen     llm.Generator
}

type CLI struct {
	log *logger.Zap
	out io.Writer
	in  io.Reader
	rl  *readline.Instance

	taskHandler       *commands.TaskHandler
	showHandler       *commands.ShowHandler
	logsHandler       *commands.LogsHandler
	connectionHandler *commands.ConnectionHandler
	settingsHandler   *commands.SettingsHandler
	llmHandler        *commands.LLMHandler
}

func New(deps Deps, log *logger.Zap) *CLI {
	return newCLI(deps, log, os.Stdout, os.Stdin)
}

func newCLI(deps Deps, log *logger.Zap, out io.Writer, in io.Reader) *CLI {
	cli := &CLI{log: log, out: out, in: in}

	cli.taskHandler = commands.NewTaskHandler(deps.Control, deps.History, out, log.Logger)
	cli.showHandler = commands.NewShowHandler(deps.History, out, log.Logger)
	cli.logsHandler = commands.NewLogsHandler(deps.LLMLogs, out, log.Logger)
	cli.connectionHandler = commands.NewConnectionHandler(deps.Control, out)
	cli.settingsHandler = commands.NewSettingsHandler(deps.Control, out)
	cli.llmHandler = commands.NewLLMHandler(deps.Gen, out)
	return cli
}

// TaskFinished печатает итог задачи. Регистрируется как слушатель оркестратора.
func (c *CLI) TaskFinished(st agent.SessionStatus) {
	c.taskHandler.Finished(st)
	if c.rl != nil {
		c.rl.Refresh()
	}
}

func (c *CLI) initReadline() {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ui.ColorCyan + "> " + ui.ColorReset,
		HistoryFile:     ".browser-pilot-history",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		c.log.Warn("Не удалось инициализировать readline, будет использован fallback режим", zap.Error(err))
		return
	}
	c.rl = rl
}

func (c *CLI) readLine(reader *bufio.Reader) (string, error) {
	if c.rl != nil {
		return c.rl.Readline()
	}
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// prompt нужен только без readline; печатается из горутины цикла команд.
func (c *CLI) prompt() {
	if c.rl == nil {
		fmt.Fprint(c.out, ui.ColorCyan+"> "+ui.ColorReset)
	}
}

func (c *CLI) closeReadline() {
	if c.rl != nil {
		c.rl.Close()
	}
}

// Run читает команды до exit, EOF или отмены ctx.
func (c *CLI) Run(ctx context.Context) error {
	c.initReadline()
	defer c.closeReadline()
	return c.runLines(ctx)
}

func (c *CLI) runLines(ctx context.Context) error {
	ui.PrintWelcome(c.out)

	reader := bufio.NewReader(c.in)
	lines := make(chan string)
	errs := make(chan error, 1)
	go func() {
		for {
			line, err := c.readLine(reader)
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					errs <- io.EOF
					return
				}
				continue
			}
			if err != nil {
				errs <- err
				return
			}
			select {
			case lines <- line:
			case <-ctx.Done():
				return
			}
		}
	}()

	c.prompt()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out, "\n"+ui.ColorCyan+ui.IconWave+" Получен сигнал завершения..."+ui.ColorReset)
			return nil
		case err := <-errs:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case line := <-lines:
			if stop := c.handleCommand(ctx, strings.TrimSpace(line)); stop {
				return nil
			}
			c.prompt()
		}
	}
}

// handleCommand выполняет одну команду. Возвращает true на exit.
func (c *CLI) handleCommand(ctx context.Context, line string) bool {
	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "":
	case "exit", "quit":
		fmt.Fprintln(c.out, ui.ColorCyan+ui.IconWave+" До свидания!"+ui.ColorReset)
		return true

	case "clear":
		ui.ClearScreen(c.out)

	case "connect":
		c.connectionHandler.Connect(ctx, arg)

	case "disconnect":
		c.connectionHandler.Disconnect()

	case "task":
		c.taskHandler.Start(arg)

	case "status":
		c.connectionHandler.Status()

	case "settings":
		c.settingsHandler.Handle(arg)

	case "tasks":
		c.taskHandler.List()

	case "show":
		c.showHandler.Show(arg)

	case "logs":
		c.logsHandler.Show(arg)

	case "test-llm":
		c.llmHandler.TestPlan(ctx, arg)

	case "level":
		if arg == "" {
			fmt.Fprintf(c.out, "Уровень логирования: %s\n", c.log.Level())
			break
		}
		if err := c.log.SetLevel(arg); err != nil {
			fmt.Fprintf(c.out, ui.ColorRed+ui.IconCross+" %v"+ui.ColorReset+"\n", err)
			break
		}
		fmt.Fprintf(c.out, ui.ColorGreen+ui.IconCheckmark+" Уровень логирования: %s"+ui.ColorReset+"\n", c.log.Level())

	default:
		ui.PrintHelp(c.out)
	}
	return false
}
