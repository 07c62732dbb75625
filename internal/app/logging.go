package app

import (
	"io"

	log "github.com/sirupsen/logrus"
)

// ConfigureLogging настраивает глобальный logrus. Неизвестный уровень понижается до info.
func ConfigureLogging(out io.Writer, level, format string) {
	log.SetOutput(out)
	if format == LogFormatJSON {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}
