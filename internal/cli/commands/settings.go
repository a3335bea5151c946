package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"browserPilot/internal/cli/ui"
	"browserPilot/internal/dom"
)

// SettingsHandler показывает и меняет настройки построения снимка.
type SettingsHandler struct {
	ctl Control
	out io.Writer
}

func NewSettingsHandler(ctl Control, out io.Writer) *SettingsHandler {
	return &SettingsHandler{ctl: ctl, out: out}
}

// Handle: без аргументов печатает настройки, иначе "<ключ> <значение>".
func (h *SettingsHandler) Handle(args string) {
	opts := h.ctl.Status().Settings
	args = strings.TrimSpace(args)
	if args == "" {
		printSettings(h.out, opts)
		return
	}

	key, value, _ := strings.Cut(args, " ")
	updated, err := applySetting(opts, key, strings.TrimSpace(value))
	if err != nil {
		printError(h.out, "%v", err)
		return
	}
	if err := h.ctl.UpdateSettings(updated); err != nil {
		printError(h.out, "Настройки не применены: %v", err)
		return
	}
	printOK(h.out, "Настройки применены")
	printSettings(h.out, updated)
}

func applySetting(opts dom.Options, key, value string) (dom.Options, error) {
	if value == "" {
		return opts, fmt.Errorf("не указано значение для %s", key)
	}
	switch strings.ToLower(key) {
	case "highlight":
		b, err := parseSwitch(value)
		if err != nil {
			return opts, err
		}
		opts.HighlightElements = b
	case "debug":
		b, err := parseSwitch(value)
		if err != nil {
			return opts, err
		}
		opts.Debug = b
	case "viewport":
		n, err := strconv.Atoi(value)
		if err != nil {
			return opts, fmt.Errorf("viewport должен быть числом: %q", value)
		}
		opts.ViewportExpansion = n
	case "attrs":
		var attrs []string
		for _, a := range strings.Split(value, ",") {
			if a = strings.TrimSpace(a); a != "" {
				attrs = append(attrs, a)
			}
		}
		opts.IncludedAttributes = attrs
	default:
		return opts, fmt.Errorf("неизвестная настройка %q (highlight, viewport, attrs, debug)", key)
	}
	return opts, opts.Validate()
}

func parseSwitch(v string) (bool, error) {
	switch strings.ToLower(v) {
	case "on", "true", "1", "yes", "вкл":
		return true, nil
	case "off", "false", "0", "no", "выкл":
		return false, nil
	}
	return false, fmt.Errorf("ожидается on или off, получено %q", v)
}

func printSettings(out io.Writer, opts dom.Options) {
	fmt.Fprintln(out, ui.ColorBold+ui.IconCog+" Настройки снимка:"+ui.ColorReset)
	fmt.Fprintf(out, "  highlight  %s\n", ui.Switch(opts.HighlightElements))
	fmt.Fprintf(out, "  viewport   %d\n", opts.ViewportExpansion)
	fmt.Fprintf(out, "  attrs      %s\n", strings.Join(opts.IncludedAttributes, ","))
	fmt.Fprintf(out, "  debug      %s\n", ui.Switch(opts.Debug))
}
