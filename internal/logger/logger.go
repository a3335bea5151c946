// Package logger собирает zap-логгер приложения: консоль и, при необходимости, файл с ротацией.
package logger

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Zap - логгер приложения. Компоненты получают *zap.Logger через поле Logger.
type Zap struct {
	*zap.Logger
	level zap.AtomicLevel
}

// File описывает файл журнала. Пустой Path отключает запись в файл.
type File struct {
	Path       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

type Option func(*options)

type options struct {
	file    File
	console zapcore.WriteSyncer
}

func WithFile(f File) Option {
	return func(o *options) { o.file = f }
}

// WithConsole заменяет вывод в stderr.
func WithConsole(w zapcore.WriteSyncer) Option {
	return func(o *options) { o.console = w }
}

// New создаёт логгер. Для env=dev используется цветной консольный формат, иначе JSON.
func New(env, level string, opts ...Option) (*Zap, error) {
	o := options{console: zapcore.Lock(os.Stderr)}
	for _, opt := range opts {
		opt(&o)
	}

	lvl := zap.NewAtomicLevel()
	if err := lvl.UnmarshalText([]byte(strings.ToLower(level))); err != nil {
		return nil, fmt.Errorf("неизвестный уровень логирования %q: %w", level, err)
	}

	cores := []zapcore.Core{zapcore.NewCore(encoder(env), o.console, lvl)}

	if o.file.Path != "" {
		if o.file.MaxSizeMB == 0 {
			o.file.MaxSizeMB = 50
		}
		if o.file.MaxBackups == 0 {
			o.file.MaxBackups = 3
		}
		// в файл всегда JSON
		writer := zapcore.AddSync(&lumberjack.Logger{
			Filename:   o.file.Path,
			MaxSize:    o.file.MaxSizeMB,
			MaxBackups: o.file.MaxBackups,
			MaxAge:     o.file.MaxAgeDays,
		})
		cores = append(cores, zapcore.NewCore(encoder("prod"), writer, lvl))
	}

	log := zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.AddStacktrace(zap.ErrorLevel),
	).Named("browserPilot")

	return &Zap{Logger: log, level: lvl}, nil
}

func encoder(env string) zapcore.Encoder {
	if strings.EqualFold(env, "dev") {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		return zapcore.NewConsoleEncoder(cfg)
	}

	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// SetLevel меняет уровень на лету, например из консоли оператора.
func (z *Zap) SetLevel(level string) error {
	return z.level.UnmarshalText([]byte(strings.ToLower(level)))
}

func (z *Zap) Level() string {
	return z.level.Level().String()
}

// Sync сбрасывает буферы. Ошибку синхронизации терминала игнорируем.
func (z *Zap) Sync() {
	_ = z.Logger.Sync()
}
