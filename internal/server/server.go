package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"browserPilot/internal/agent"
	"browserPilot/internal/config"
	"browserPilot/internal/database"
	"browserPilot/internal/dom"
	"browserPilot/internal/transport"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Control - операции управляющей поверхности. Реализуется agent.Controller.
type Control interface {
	Connect(ctx context.Context, address string) error
	Disconnect() error
	ExecuteTask(task string) (*agent.Session, error)
	Status() agent.Status
	UpdateSettings(opts dom.Options) error
}

// History - чтение сохранённых задач. Без БД не задаётся.
type History interface {
	ListTasks(limit, offset int) ([]database.Task, error)
	GetTaskByID(id uint) (*database.Task, error)
	ListSteps(taskID uint) ([]database.AgentStep, error)
}

type Server struct {
	cfg     *config.Cfg
	log     *zap.Logger
	ctl     Control
	history History
	engine  *gin.Engine
}

func New(cfg *config.Cfg, log *zap.Logger, ctl Control, history History) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Server{
		cfg:     cfg,
		log:     log.Named("http"),
		ctl:     ctl,
		history: history,
	}
	s.engine = s.routes()
	return s
}

// Handler - маршруты сервера, для тестов и встраивания.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	// Простейший лог-мидлвар
	r.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("HTTP",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.POST("/connect", s.connect)
	api.POST("/disconnect", s.disconnect)
	api.POST("/task", s.task)
	api.GET("/status", s.status)
	api.PUT("/settings", s.settings)
	api.GET("/tasks", s.tasks)
	api.GET("/tasks/:id", s.taskByID)
	return r
}

func (s *Server) connect(c *gin.Context) {
	var req struct {
		Address string `json:"address"`
	}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	if err := s.ctl.Connect(c.Request.Context(), req.Address); err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, agent.ErrNoAddress) {
			status = http.StatusBadRequest
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) disconnect(c *gin.Context) {
	if err := s.ctl.Disconnect(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) task(c *gin.Context) {
	var req struct {
		Task string `json:"task" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := s.ctl.ExecuteTask(req.Task)
	switch {
	case err == nil:
	case errors.Is(err, agent.ErrEmptyTask):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case transport.IsChannelError(err):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	default:
		s.log.Error("Ошибка запуска задачи", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, session.Status())
}

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) settings(c *gin.Context) {
	opts := s.ctl.Status().Settings
	if err := c.ShouldBindJSON(&opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ctl.UpdateSettings(opts); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, opts)
}

func (s *Server) tasks(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "история не сохраняется: БД не настроена"})
		return
	}
	limit, err := queryInt(c, "limit", 50)
	if err != nil || limit <= 0 || limit > 500 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad limit"})
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad offset"})
		return
	}

	tasks, err := s.history.ListTasks(limit, offset)
	if err != nil {
		s.log.Error("db list tasks", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (s *Server) taskByID(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "история не сохраняется: БД не настроена"})
		return
	}
	id64, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad id"})
		return
	}

	task, err := s.history.GetTaskByID(uint(id64))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
		return
	}
	if err != nil {
		s.log.Error("db get task", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}

	steps, err := s.history.ListSteps(task.ID)
	if err != nil {
		s.log.Error("db list steps", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "db error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"task": task, "steps": steps})
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

// Run слушает адрес из конфигурации до отмены ctx.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Server.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("Сервер запущен", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		<-errCh
		s.log.Info("Сервер остановлен")
		return nil
	}
}
