package handlers

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-logr/logr"
	"github.com/go-logr/zapr"
	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogFormat selects the zap encoder.
type LogFormat string

// Supported log formats. An empty format picks console output on a terminal
// and JSON otherwise.
const (
	FormatConsole LogFormat = "console"
	FormatJSON    LogFormat = "json"
)

// AvailableFormats lists the accepted --log-format values.
var AvailableFormats = []LogFormat{FormatConsole, FormatJSON}

func availableFormats() string {
	names := make([]string, 0, len(AvailableFormats))
	for _, f := range AvailableFormats {
		names = append(names, string(f))
	}
	return strings.Join(names, ", ")
}

// NewLogger builds a logr.Logger backed by zap writing to w. Every verbosity
// step enables one more logr V level.
func NewLogger(w io.Writer, format LogFormat, verbosity int) (logr.Logger, error) {
	if format == "" {
		format = FormatJSON
		if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
			format = FormatConsole
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var enc zapcore.Encoder
	switch format {
	case FormatConsole:
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		enc = zapcore.NewConsoleEncoder(encCfg)
	case FormatJSON:
		enc = zapcore.NewJSONEncoder(encCfg)
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q, use one of %s", format, availableFormats())
	}

	level := zap.NewAtomicLevelAt(zapcore.Level(-verbosity))
	core := zapcore.NewCore(enc, zapcore.AddSync(w), level)
	return zapr.NewLogger(zap.New(core)), nil
}
