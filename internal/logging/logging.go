// Package logging configures the structured logger and guarantees that
// credential-bearing XML never reaches the log output, debug mode included.
package logging

import (
	"github.com/sirupsen/logrus"

	"github.com/enerlytics/energis-extractor/internal/soap"
)

// New returns a JSON-formatted logger with the masking hook installed.
func New(debug bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	}
	logger.AddHook(maskHook{})
	return logger
}

// maskHook passes every log message and string field through the
// credential mask before it is written.
type maskHook struct{}

func (maskHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (maskHook) Fire(entry *logrus.Entry) error {
	entry.Message = soap.MaskSensitiveData(entry.Message)
	for key, value := range entry.Data {
		if s, ok := value.(string); ok {
			entry.Data[key] = soap.MaskSensitiveData(s)
		}
	}
	return nil
}
