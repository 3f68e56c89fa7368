package schedule

import (
	"github.com/sirupsen/logrus"
)

// cronLogger adapts logrus to cron.Logger
type cronLogger struct {
	logger *logrus.Logger
}

func fieldsOf(keysAndValues []interface{}) logrus.Fields {
	fields := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		key, ok := keysAndValues[i].(string)
		if !ok {
			continue
		}
		fields[key] = keysAndValues[i+1]
	}
	return fields
}

// Info logs routine scheduler events at Debug; the cron runtime is chatty.
func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fieldsOf(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.WithFields(fieldsOf(keysAndValues)).WithError(err).Error("cron: " + msg)
}
