// d8cart/telemetry/logger.go

package telemetry

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a JSON logger with the field names log collectors expect.
// An unknown level falls back to info.
func NewLogger(level string, out io.Writer) *logrus.Logger {
	log := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.Level = lvl
	log.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "severity",
			logrus.FieldKeyMsg:   "message",
		},
		TimestampFormat: time.RFC3339Nano,
	}
	log.Out = out
	return log
}
