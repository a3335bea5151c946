package commands

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"browserPilot/internal/cli/ui"
	"browserPilot/internal/database"

	"go.uber.org/zap"
)

const logsLimit = 20

// LogsHandler обрабатывает команды просмотра запросов к модели
type LogsHandler struct {
	logs LLMLogs
	out  io.Writer
	log  *zap.Logger
}

func NewLogsHandler(logs LLMLogs, out io.Writer, log *zap.Logger) *LogsHandler {
	return &LogsHandler{
		logs: logs,
		out:  out,
		log:  log,
	}
}

// Show выводит последние запросы к модели, для задачи - если указан её ID.
func (h *LogsHandler) Show(idStr string) {
	if h.logs == nil {
		noHistory(h.out)
		return
	}

	var (
		entries []database.LlmLog
		err     error
	)
	idStr = strings.TrimSpace(idStr)
	if idStr == "" {
		entries, err = h.logs.ListLLMLogs(logsLimit)
	} else {
		id, perr := parseID(idStr)
		if perr != nil {
			printError(h.out, "%v", perr)
			return
		}
		entries, err = h.logs.ListLLMLogsByTask(id, logsLimit)
	}
	if err != nil {
		h.log.Error("Ошибка чтения логов модели", zap.Error(err))
		printError(h.out, "Ошибка чтения логов")
		return
	}

	fmt.Fprintln(h.out, "\n"+ui.ColorBold+"=== "+ui.IconList+" Запросы к модели ==="+ui.ColorReset)
	if len(entries) == 0 {
		fmt.Fprintln(h.out, ui.ColorGray+"Записей нет"+ui.ColorReset)
		return
	}

	for _, e := range entries {
		task := "-"
		if e.TaskID != nil {
			task = fmt.Sprintf("#%d", *e.TaskID)
		}
		fmt.Fprintf(h.out, ui.ColorGray+"[%s]"+ui.ColorReset+" "+ui.ColorCyan+"%s"+ui.ColorReset+" %s, токенов %d\n",
			e.CreatedAt.Format("15:04:05"), e.Model, task, e.TokensUsed)
		if e.ResponseText != "" {
			fmt.Fprintf(h.out, "  "+ui.ColorGray+"%s"+ui.ColorReset+"\n", shorten(e.ResponseText, 120))
		}
	}
	fmt.Fprintln(h.out)
}

func shorten(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit]) + "…"
}
