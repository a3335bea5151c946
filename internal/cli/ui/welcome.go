package ui

import (
	"fmt"
	"io"
	"os"
)

// PrintWelcome выводит приветствие и лого
func PrintWelcome(out io.Writer) {
	logoBytes, err := os.ReadFile("logo.txt")
	if err == nil {
		fmt.Fprintln(out, ColorCyan+string(logoBytes)+ColorReset)
	}
	fmt.Fprintln(out, ColorBold+IconRobot+" browserPilot"+ColorReset)
	fmt.Fprintln(out, ColorGray+"Агент, выполняющий задачи на живой веб-странице"+ColorReset)
	fmt.Fprintln(out)
	PrintHelp(out)
	fmt.Fprintln(out, ColorCyan+IconBulb+" Совет:"+ColorReset+" запустите "+ColorYellow+"browserPilot page"+ColorReset+
		", затем "+ColorYellow+"connect"+ColorReset+" и "+ColorYellow+"task"+ColorReset)
	fmt.Fprintln(out)
	fmt.Fprintln(out, ColorGray+"⬆️ ⬇️"+ColorReset+" Используйте стрелки для навигации по истории команд")
	fmt.Fprintln(out)
}

// PrintHelp выводит список доступных команд
func PrintHelp(out io.Writer) {
	fmt.Fprintln(out, ColorYellow+IconList+" Доступные команды:"+ColorReset)
	fmt.Fprintln(out, "  "+ColorGreen+"connect"+ColorReset+" [адрес]      - Подключиться к странице")
	fmt.Fprintln(out, "  "+ColorGreen+"disconnect"+ColorReset+"           - Отключиться и прервать задачу")
	fmt.Fprintln(out, "  "+ColorGreen+"task"+ColorReset+" <текст>         - Запустить задачу")
	fmt.Fprintln(out, "  "+ColorGreen+"status"+ColorReset+"               - Состояние канала и задачи")
	fmt.Fprintln(out, "  "+ColorGreen+"settings"+ColorReset+" [ключ знач] - Настройки снимка (highlight, viewport, attrs, debug)")
	fmt.Fprintln(out, "  "+ColorGreen+"tasks"+ColorReset+"                - Список сохранённых задач")
	fmt.Fprintln(out, "  "+ColorGreen+"show"+ColorReset+" <id>            - Детали задачи")
	fmt.Fprintln(out, "  "+ColorGreen+"logs"+ColorReset+" [id]            - Запросы к модели")
	fmt.Fprintln(out, "  "+ColorGreen+"test-llm"+ColorReset+" <задача>    - Пробный запрос к модели")
	fmt.Fprintln(out, "  "+ColorGreen+"level"+ColorReset+" <уровень>      - Уровень логирования")
	fmt.Fprintln(out, "  "+ColorGreen+"clear"+ColorReset+"                - Очистить экран")
	fmt.Fprintln(out, "  "+ColorGreen+"exit"+ColorReset+"                 - Выход")
	fmt.Fprintln(out)
}
