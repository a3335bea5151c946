package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"browserPilot/internal/cli/ui"
)

// ConnectionHandler обрабатывает подключение к странице и статус.
type ConnectionHandler struct {
	ctl Control
	out io.Writer
}

func NewConnectionHandler(ctl Control, out io.Writer) *ConnectionHandler {
	return &ConnectionHandler{ctl: ctl, out: out}
}

// Connect подключается к адресу страницы. Без адреса используется сохранённый.
func (h *ConnectionHandler) Connect(ctx context.Context, address string) {
	address = strings.TrimSpace(address)
	if address != "" && !strings.Contains(address, "://") {
		address = "ws://" + address
	}

	fmt.Fprintln(h.out, ui.ColorCyan+ui.IconGlobe+" Подключение к странице..."+ui.ColorReset)
	if err := h.ctl.Connect(ctx, address); err != nil {
		printError(h.out, "Ошибка подключения: %v", err)
		return
	}
	printOK(h.out, "Подключено: %s", h.ctl.Status().Address)
}

func (h *ConnectionHandler) Disconnect() {
	if err := h.ctl.Disconnect(); err != nil {
		printError(h.out, "Ошибка отключения: %v", err)
		return
	}
	printOK(h.out, "Канал закрыт")
}

// Status выводит состояние канала, текущей задачи и настроек.
func (h *ConnectionHandler) Status() {
	st := h.ctl.Status()
	fmt.Fprintln(h.out)
	fmt.Fprintf(h.out, ui.ColorBold+ui.IconChart+" Канал:"+ui.ColorReset+" %s%s"+ui.ColorReset+"\n",
		ui.ConnectionColor(st.ConnectionStatus), st.ConnectionStatus)
	if st.Address != "" {
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"Адрес:"+ui.ColorReset+" %s\n", st.Address)
	}
	if st.LastError != "" {
		fmt.Fprintf(h.out, "  "+ui.ColorRed+"Ошибка:"+ui.ColorReset+" %s\n", st.LastError)
	}

	if s := st.Session; s != nil {
		fmt.Fprintf(h.out, ui.ColorBold+ui.IconRobot+" Задача:"+ui.ColorReset+" %s\n", s.Task)
		fmt.Fprintf(h.out, "  "+ui.ColorGray+"Состояние:"+ui.ColorReset+" %s, шаг %d, токенов %d\n", s.State, s.Step, s.Tokens)
		if s.LastAction != nil {
			fmt.Fprintf(h.out, "  "+ui.ColorGray+"Последнее действие:"+ui.ColorReset+" %s\n", s.LastAction.String())
		}
		if s.Complete {
			icon, color := ui.IconCheckmark, ui.ColorGreen
			if !s.Success {
				icon, color = ui.IconCross, ui.ColorRed
			}
			fmt.Fprintf(h.out, "  %s%s %s"+ui.ColorReset+"\n", color, icon, s.Message)
		}
	} else {
		fmt.Fprintln(h.out, ui.ColorGray+"Задач не было"+ui.ColorReset)
	}

	printSettings(h.out, st.Settings)
	fmt.Fprintln(h.out)
}
