package logging

import (
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/ezenkico/deploy-commander/ethnode/models"
)

const EnvLogLevel = "ETHNODE_LOG_LEVEL"

// Separator frames error reports so they stand out in interleaved container
// output.
var Separator = strings.Repeat("-", 72)

func New(app string, out *os.File) zerolog.Logger {
	noColor := !isatty.IsTerminal(out.Fd()) && !isatty.IsCygwinTerminal(out.Fd())
	return NewWithWriter(app, out, noColor)
}

func NewWithWriter(app string, w io.Writer, noColor bool) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
	return zerolog.New(output).
		Level(level(os.Getenv(EnvLogLevel))).
		With().Timestamp().Str("app", app).Logger()
}

func level(raw string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "disabled", "off", "none":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Event logs a lifecycle event of a service ("PROCESS START - SIGNER").
func Event(log zerolog.Logger, event string, service models.ServiceName, details string) {
	e := log.Warn().Str("service", string(service))
	if details != "" {
		e = e.Str("details", details)
	}
	e.Msgf("PROCESS %s - %s", strings.ToUpper(event), strings.ToUpper(string(service)))
}

// ReportError logs err with the originating service and, for process
// failures, the captured output.
func ReportError(log zerolog.Logger, service models.ServiceName, err error) {
	if err == nil {
		return
	}
	name := strings.ToUpper(string(service))

	var (
		interrupt *models.InterruptError
		exit      *models.ServiceExitError
		start     *models.ProcessStartError
		policy    *models.PolicyViolation
	)

	switch {
	case errors.As(err, &interrupt):
		log.Error().Err(err).Msgf("PROCESS STOP - %s\n%s", name, Separator)
	case errors.As(err, &exit):
		log.Error().Err(err).Int64("exit_code", exit.ExitCode).
			Msgf("PROCESS ERROR - %s\n%s%s", name, strings.TrimRight(string(exit.Output), "\n")+"\n", Separator)
	case errors.As(err, &start):
		log.Error().Err(err).Msgf("PROCESS ERROR - %s\n%s", name, Separator)
	case errors.As(err, &policy):
		log.Error().Err(err).Msgf("BAD INPUT - %s\n%s", name, Separator)
	default:
		log.Error().Err(err).Msgf("ERROR - %s\n%s", name, Separator)
	}
}
