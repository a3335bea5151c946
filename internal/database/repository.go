package database

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TaskRepository struct {
	db *gorm.DB
}

func NewTaskRepository(db *gorm.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

func (r *TaskRepository) CreateTask(t *Task) error {
	return r.db.Create(t).Error
}

func (r *TaskRepository) GetTaskByID(id uint) (*Task, error) {
	var task Task
	if err := r.db.First(&task, id).Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func (r *TaskRepository) ListTasks(limit, offset int) ([]Task, error) {
	var tasks []Task
	if err := r.db.Order("id DESC").Limit(limit).Offset(offset).Find(&tasks).Error; err != nil {
		return nil, err
	}
	return tasks, nil
}

func (r *TaskRepository) UpdateTaskStatus(id uint, status, summary string) error {
	return r.db.Model(&Task{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         status,
			"result_summary": summary,
		}).Error
}

func (r *TaskRepository) CreateStep(s *AgentStep) error {
	return r.db.Create(s).Error
}

// ListSteps возвращает шаги задачи по порядку.
func (r *TaskRepository) ListSteps(taskID uint) ([]AgentStep, error) {
	var steps []AgentStep
	if err := r.db.Where("task_id = ?", taskID).Order("step_no ASC, id ASC").Find(&steps).Error; err != nil {
		return nil, err
	}
	return steps, nil
}

func (r *TaskRepository) LogLLMRequest(ctx context.Context, taskID, stepID *uint, role, promptText, responseText, model string, tokensUsed int) error {
	return r.db.WithContext(ctx).Create(&LlmLog{
		TaskID:       taskID,
		StepID:       stepID,
		Role:         role,
		PromptText:   promptText,
		ResponseText: responseText,
		Model:        model,
		TokensUsed:   tokensUsed,
	}).Error
}

func (r *TaskRepository) ListLLMLogs(limit int) ([]LlmLog, error) {
	var logs []LlmLog
	if err := r.db.Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}

// GetSetting возвращает пустую строку, если настройки ещё нет.
func (r *TaskRepository) GetSetting(key string) (string, error) {
	var s Setting
	err := r.db.Where("key = ?", key).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return s.Value, nil
}

func (r *TaskRepository) SetSetting(key, value string) error {
	return r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&Setting{Key: key, Value: value}).Error
}

// ListLLMLogsByTask возвращает последние запросы к модели по задаче.
func (r *TaskRepository) ListLLMLogsByTask(taskID uint, limit int) ([]LlmLog, error) {
	var logs []LlmLog
	if err := r.db.Where("task_id = ?", taskID).Order("id DESC").Limit(limit).Find(&logs).Error; err != nil {
		return nil, err
	}
	return logs, nil
}
