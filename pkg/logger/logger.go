package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config 定義 Log 輸出設定
type Config struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Pretty bool   `yaml:"pretty"` // true: 終端機彩色輸出, false: JSON
}

// Setup 依設定初始化全域 zerolog Logger
func Setup(cfg Config) {
	SetupWithWriter(cfg, os.Stderr)
}

// SetupWithWriter 與 Setup 相同，但可以指定輸出位置
func SetupWithWriter(cfg Config, w io.Writer) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.SetGlobalLevel(ParseLevel(cfg.Level))

	if cfg.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
}

// ParseLevel 將字串轉成 zerolog.Level，無法辨識時回傳 Info
func ParseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}
