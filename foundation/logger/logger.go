// Package logger provides a thin wrapper around zap that configures
// the JSON-encoded, service-tagged logger every binary in this module
// constructs once in main and threads down through every subsystem.
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New constructs a SugaredLogger that writes JSON to stdout, tagging
// every entry with the given service name.
func New(service string) (*zap.SugaredLogger, error) {
	return NewWithOutput(service, "stdout")
}

// NewWithOutput is New with an explicit output path, split out so
// tests can point logging somewhere other than stdout without
// otherwise duplicating the encoder configuration.
func NewWithOutput(service string, outputPath string) (*zap.SugaredLogger, error) {
	config := zap.NewProductionConfig()
	config.OutputPaths = []string{outputPath}
	config.EncoderConfig.TimeKey = "date"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.StacktraceKey = ""
	config.InitialFields = map[string]any{
		"service": service,
	}

	log, err := config.Build(zap.WithCaller(true))
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
