// Package logger はzapを使った構造化ログを提供する。
//
// devモードではコンソール形式、prodモードではJSON形式で出力する。
// ファイル出力が指定された場合はlumberjackでローテーションする。
package logger

import (
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger はzap.SugaredLoggerの薄いラッパー。
type Logger struct {
	// sugar は内部で使用するzapのロガー。
	sugar *zap.SugaredLogger
}

// Options はロガーの生成オプション。
type Options struct {
	// Mode は"dev"または"prod"。
	Mode string
	// Level はログレベル（debug/info/warn/error）。空の場合はモードに応じて決まる。
	Level string
	// File はログファイルのパス。空の場合は標準出力のみ。
	File string
}

// New は新しいロガーを生成する。
func New(opts Options) (*Logger, error) {
	prod := strings.EqualFold(opts.Mode, "prod") || strings.EqualFold(opts.Mode, "production")

	level := zapcore.DebugLevel
	if prod {
		level = zapcore.InfoLevel
	}
	if opts.Level != "" {
		parsed, err := zapcore.ParseLevel(opts.Level)
		if err != nil {
			return nil, err
		}
		level = parsed
	}

	var encoder zapcore.Encoder
	if prod {
		encoder = zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	} else {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.000")
		encoder = zapcore.NewConsoleEncoder(cfg)
	}

	sinks := []zapcore.WriteSyncer{zapcore.Lock(os.Stdout)}
	if opts.File != "" {
		sinks = append(sinks, zapcore.AddSync(&lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		}))
	}

	core := zapcore.NewCore(encoder, zapcore.NewMultiWriteSyncer(sinks...), level)
	return &Logger{sugar: zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()}, nil
}

// NewNop は何も出力しないロガーを返す。テストで使用する。
func NewNop() *Logger {
	return &Logger{sugar: zap.NewNop().Sugar()}
}

// FromZap は既存のzap.Loggerをラップする。
func FromZap(z *zap.Logger) *Logger {
	return &Logger{sugar: z.Sugar()}
}

// With はキーと値のペアを付与した子ロガーを返す。
func (l *Logger) With(keysAndValues ...any) *Logger {
	return &Logger{sugar: l.sugar.With(keysAndValues...)}
}

// Debug はdebugレベルのログを出力する。
func (l *Logger) Debug(msg string, keysAndValues ...any) { l.sugar.Debugw(msg, keysAndValues...) }

// Info はinfoレベルのログを出力する。
func (l *Logger) Info(msg string, keysAndValues ...any) { l.sugar.Infow(msg, keysAndValues...) }

// Warn はwarnレベルのログを出力する。
func (l *Logger) Warn(msg string, keysAndValues ...any) { l.sugar.Warnw(msg, keysAndValues...) }

// Error はerrorレベルのログを出力する。
func (l *Logger) Error(msg string, keysAndValues ...any) { l.sugar.Errorw(msg, keysAndValues...) }

// Fatal はfatalレベルのログを出力して終了する。
func (l *Logger) Fatal(msg string, keysAndValues ...any) { l.sugar.Fatalw(msg, keysAndValues...) }

// Sync はバッファされたログを書き出す。
func (l *Logger) Sync() { _ = l.sugar.Sync() }
