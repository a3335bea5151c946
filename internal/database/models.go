// Package database хранит историю задач, шагов, запросов к модели и настройки оператора в PostgreSQL.
// Используется GORM с prepared statements.
package database

import "time"

const (
	TaskPending   = "pending"
	TaskRunning   = "running"
	TaskCompleted = "completed"
	TaskFailed    = "failed"
)

// Task - задача оператора. Статусы: pending, running, completed, failed.
type Task struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserInput     string    `gorm:"type:text;not null" json:"userInput"`                       // Текст задачи после маскирования
	Status        string    `gorm:"type:varchar(32);not null;default:'pending'" json:"status"` // Статус выполнения
	ResultSummary string    `gorm:"type:text" json:"resultSummary,omitempty"`                  // Итоговое сообщение
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// AgentStep - одно решение модели и его результат.
type AgentStep struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	TaskID         uint      `gorm:"index;not null" json:"taskId"`
	StepNo         int       `gorm:"not null" json:"stepNo"`
	ActionType     string    `gorm:"type:varchar(64);not null" json:"actionType"` // click_element, input_text, ...
	TargetSelector string    `gorm:"type:text" json:"target,omitempty"`           // Локатор элемента
	Reasoning      string    `gorm:"type:text" json:"reasoning,omitempty"`        // Действие в читаемом виде
	Result         string    `gorm:"type:text" json:"result,omitempty"`
	ScreenshotPath string    `gorm:"type:text" json:"screenshotPath,omitempty"`
	CreatedAt      time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// LlmLog - запрос к модели. Промпт и ответ сохраняются уже замаскированными.
type LlmLog struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	TaskID       *uint     `gorm:"index" json:"taskId,omitempty"`
	StepID       *uint     `gorm:"index" json:"stepId,omitempty"`
	Role         string    `gorm:"type:varchar(16);not null" json:"role"`
	PromptText   string    `gorm:"type:text;not null" json:"prompt"`
	ResponseText string    `gorm:"type:text" json:"response,omitempty"`
	Model        string    `gorm:"type:varchar(64)" json:"model"`
	TokensUsed   int       `json:"tokensUsed"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// Setting - последняя применённая настройка оператора (адрес канала, параметры снимка).
type Setting struct {
	Key       string    `gorm:"primaryKey;type:varchar(64)"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}
