package logutils

import (
	"github.com/sirupsen/logrus"
)

// Log is the process wide logger.
var Log = logrus.New()

// Fields is the type of logrus.Fields.
type Fields = logrus.Fields

const timestampFormat = "2006-01-02 15:04:05"

//nolint:gochecknoinits // defaults until Setup runs with the loaded config.
func init() {
	Log.SetLevel(logrus.InfoLevel)
	Log.SetFormatter(textFormatter())
	Log.SetReportCaller(true)
}

func textFormatter() logrus.Formatter {
	return &logrus.TextFormatter{
		TimestampFormat:           timestampFormat,
		ForceColors:               true,
		EnvironmentOverrideColors: true,
		FullTimestamp:             true,
	}
}

// Setup applies the configured level name ("debug", "warn", ...) and output
// format ("text" or "json"). Unknown values keep the current setting and are
// reported.
func Setup(level, format string) {
	switch format {
	case "", "text":
		Log.SetFormatter(textFormatter())
	case "json":
		Log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timestampFormat})
	default:
		Log.Warnf("unknown log format %q, keeping text", format)
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		Log.Warnf("unknown log level %q, keeping %s", level, Log.GetLevel())
		return
	}
	Log.SetLevel(lvl)
}

// WithRequest returns an entry tagged with a request id.
func WithRequest(requestID string) *logrus.Entry {
	return Log.WithField("request_id", requestID)
}
