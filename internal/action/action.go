package action

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type Type string

const (
	Click   Type = "click_element"
	Input   Type = "input_text"
	Extract Type = "extract_content"
	Scroll  Type = "scroll"
	Wait    Type = "wait"
	Done    Type = "done"
)

const (
	DirectionUp   = "up"
	DirectionDown = "down"
)

var (
	ErrElementNotFound = errors.New("элемент не найден")
	ErrMalformedAction = errors.New("некорректное действие")
)

// Action - одно действие из закрытого словаря. Элемент адресуется локатором (xpath);
// Index оставлен только для старого формата с номером элемента.
type Action struct {
	Type      Type    `json:"type"`
	XPath     string  `json:"xpath,omitempty"`
	Index     *int    `json:"index,omitempty"`
	Text      string  `json:"text,omitempty"`
	Goal      string  `json:"goal,omitempty"`
	Direction string  `json:"direction,omitempty"`
	Amount    int     `json:"amount,omitempty"`
	Seconds   float64 `json:"seconds,omitempty"`
	Message   string  `json:"message,omitempty"`
	Success   bool    `json:"success,omitempty"`
}

func (a Action) addressed() bool {
	return strings.TrimSpace(a.XPath) != "" || a.Index != nil
}

// Validate отклоняет действие, у которого нет обязательных полей.
func (a Action) Validate() error {
	switch a.Type {
	case Click:
		if !a.addressed() {
			return fmt.Errorf("%w: click_element требует xpath", ErrMalformedAction)
		}
	case Input:
		if !a.addressed() {
			return fmt.Errorf("%w: input_text требует xpath", ErrMalformedAction)
		}
		if a.Text == "" {
			return fmt.Errorf("%w: input_text требует text", ErrMalformedAction)
		}
	case Extract:
		if strings.TrimSpace(a.Goal) == "" {
			return fmt.Errorf("%w: extract_content требует goal", ErrMalformedAction)
		}
	case Scroll:
		if a.Direction != DirectionUp && a.Direction != DirectionDown {
			return fmt.Errorf("%w: scroll требует direction up|down, получено %q", ErrMalformedAction, a.Direction)
		}
		if a.Amount < 0 {
			return fmt.Errorf("%w: отрицательный amount", ErrMalformedAction)
		}
	case Wait:
		if a.Seconds <= 0 {
			return fmt.Errorf("%w: wait требует seconds > 0", ErrMalformedAction)
		}
	case Done:
	case "":
		return fmt.Errorf("%w: не указан тип", ErrMalformedAction)
	default:
		return fmt.Errorf("%w: неизвестный тип %q", ErrMalformedAction, a.Type)
	}
	return nil
}

func (a Action) Terminal() bool { return a.Type == Done }

func (a Action) String() string {
	switch a.Type {
	case Click:
		return fmt.Sprintf("click_element(%s)", a.target())
	case Input:
		return fmt.Sprintf("input_text(%s, %q)", a.target(), a.Text)
	case Extract:
		return fmt.Sprintf("extract_content(%q)", a.Goal)
	case Scroll:
		return fmt.Sprintf("scroll(%s, %d)", a.Direction, a.Amount)
	case Wait:
		return fmt.Sprintf("wait(%gs)", a.Seconds)
	case Done:
		return fmt.Sprintf("done(success=%t, %q)", a.Success, a.Message)
	}
	return string(a.Type)
}

func (a Action) target() string {
	if a.XPath != "" {
		return a.XPath
	}
	if a.Index != nil {
		return fmt.Sprintf("#%d", *a.Index)
	}
	return "?"
}

func NewDone(success bool, message string) Action {
	return Action{Type: Done, Success: success, Message: message}
}

// Result - итог выполнения действия.
type Result struct {
	Success     bool   `json:"success"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	Data        any    `json:"data,omitempty"`
	IsDone      bool   `json:"isDone,omitempty"`
	TaskSuccess bool   `json:"taskSuccess,omitempty"`
}

func Failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// ExecutionError - взаимодействие было начато, но завершилось ошибкой.
type ExecutionError struct {
	Action Type
	Step   string
	Err    error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: ошибка на шаге %s: %v", e.Action, e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Decode разбирает действие из JSON, поддерживая и старый формат.
func Decode(raw []byte) (Action, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Action{}, fmt.Errorf("%w: %v", ErrMalformedAction, err)
	}
	return FromMap(fields)
}
