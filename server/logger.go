package server

import (
	"io"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger sets up the global logger. Debug lowers the level and puts gin in debug mode.
func InitLogger(out io.Writer, debug bool) {
	level := zerolog.InfoLevel
	gin.SetMode(gin.ReleaseMode)

	if debug {
		level = zerolog.DebugLevel
		gin.SetMode(gin.DebugMode)
	}

	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: "15:04:05.000",
	}).With().
		Timestamp().
		Str("app", "flymap").
		Logger()
}

// ComponentLogger creates a logger with a component name field.
func ComponentLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}
