// Package commands - обработчики команд консоли оператора.
package commands

import (
	"context"
	"fmt"
	"io"

	"browserPilot/internal/agent"
	"browserPilot/internal/cli/ui"
	"browserPilot/internal/database"
	"browserPilot/internal/dom"
)

// Control - управляющая поверхность агента. Реализуется agent.Controller.
type Control interface {
	Connect(ctx context.Context, address string) error
	Disconnect() error
	ExecuteTask(task string) (*agent.Session, error)
	Status() agent.Status
	UpdateSettings(opts dom.Options) error
}

// History - сохранённые задачи и шаги.
type History interface {
	ListTasks(limit, offset int) ([]database.Task, error)
	GetTaskByID(id uint) (*database.Task, error)
	ListSteps(taskID uint) ([]database.AgentStep, error)
}

// LLMLogs - сохранённые запросы к модели.
type LLMLogs interface {
	ListLLMLogs(limit int) ([]database.LlmLog, error)
	ListLLMLogsByTask(taskID uint, limit int) ([]database.LlmLog, error)
}

func printError(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, ui.ColorRed+ui.IconCross+" "+format+ui.ColorReset+"\n", args...)
}

func printOK(out io.Writer, format string, args ...any) {
	fmt.Fprintf(out, ui.ColorGreen+ui.IconCheckmark+" "+format+ui.ColorReset+"\n", args...)
}

func noHistory(out io.Writer) {
	printError(out, "История не сохраняется: БД не настроена")
}
