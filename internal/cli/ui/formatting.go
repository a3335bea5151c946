// Package ui - цвета, значки и форматирование вывода консоли.
package ui

import (
	"fmt"
	"io"

	"browserPilot/internal/database"
	"browserPilot/internal/transport"
)

const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
	ColorBold   = "\033[1m"
)

const (
	IconCheckmark = "✓"
	IconCross     = "✗"
	IconPlay      = "▶"
	IconClock     = "⏳"
	IconRobot     = "🤖"
	IconDocument  = "📝"
	IconCog       = "⚙️"
	IconGlobe     = "🌐"
	IconWave      = "👋"
	IconList      = "📋"
	IconChart     = "📊"
	IconTime      = "🕐"
	IconChat      = "💬"
	IconLoop      = "🔄"
)

// FormatStatus возвращает значок, цвет и подпись статуса задачи.
func FormatStatus(status string) (icon, color, text string) {
	switch status {
	case database.TaskCompleted:
		return IconCheckmark, ColorGreen, "завершена"
	case database.TaskFailed:
		return IconCross, ColorRed, "ошибка"
	case database.TaskRunning:
		return IconPlay, ColorCyan, "выполняется"
	case database.TaskPending:
		return IconClock, ColorYellow, "ожидает"
	default:
		return IconClock, ColorYellow, status
	}
}

func ConnectionColor(state transport.ConnectionState) string {
	switch state {
	case transport.StateConnected:
		return ColorGreen
	case transport.StateConnecting:
		return ColorYellow
	case transport.StateError:
		return ColorRed
	default:
		return ColorGray
	}
}

func Switch(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

func ClearScreen(out io.Writer) {
	fmt.Fprint(out, "\033[H\033[2J")
}
