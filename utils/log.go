package utils

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is an instance of logrus.Logger
// Logger is to be used for all logging
var Logger = newLogger(os.Stdout, logrus.InfoLevel, true)

func newLogger(out io.Writer, level logrus.Level, json bool) *logrus.Logger {
	logger := &logrus.Logger{
		Out:       out,
		Hooks:     make(logrus.LevelHooks),
		Formatter: &logrus.TextFormatter{},
		Level:     level,
	}
	if json {
		logger.Formatter = &logrus.JSONFormatter{}
	}
	return logger
}

// InitLogger initializes the logger with apropriate configuration options
func InitLogger(config *Config) {
	Logger = GetNewFileLogger(config.LogFileName, config.LogMaxSize, config.LogLevel, true)
	Logger.Info("Logger started")
}

// GetNewFileLogger returns a logger writing to a rotated file, or to stdout
// when fileName is "stdout"
func GetNewFileLogger(fileName string, maxSize int, logLevel string, json bool) *logrus.Logger {
	if fileName == "" {
		fileName = "./auctionhouse.log"
	}

	if maxSize == 0 {
		maxSize = 50
	}

	if logLevel == "" {
		logLevel = "info"
	}

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}

	var out io.Writer = os.Stdout
	if fileName != "stdout" {
		out = &lumberjack.Logger{
			Filename: fileName,
			MaxSize:  maxSize, // MB
		}
	}

	return newLogger(out, level, json)
}
