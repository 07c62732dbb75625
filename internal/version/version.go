package version

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Значения подставляются при сборке:
//
//	go build -ldflags "-X github.com/vladislavdragonenkov/marketplace/internal/version.version=v1.2.0"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Service: имя сервиса в логах, health-ответах и gRPC health.
const Service = "marketplace"

// Build описывает собранный бинарник.
type Build struct {
	Version string
	Commit  string
	Date    string
}

// Current возвращает сведения о текущей сборке.
func Current() Build {
	return Build{Version: version, Commit: commit, Date: date}
}

// Fields отдаёт сборку полями logrus для стартового сообщения.
func (b Build) Fields() log.Fields {
	return log.Fields{
		"service": Service,
		"version": b.Version,
		"commit":  b.Commit,
		"built":   b.Date,
	}
}

func (b Build) String() string {
	return fmt.Sprintf("%s %s (%s, %s)", Service, b.Version, b.Commit, b.Date)
}
