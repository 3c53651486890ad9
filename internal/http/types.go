package http

import (
	"net/http"

	"github.com/mauv0809/refactored-ladder/internal/config"
	"github.com/mauv0809/refactored-ladder/internal/ladder"
	"github.com/mauv0809/refactored-ladder/internal/lifecycle"
	"github.com/mauv0809/refactored-ladder/internal/metrics"
	"github.com/mauv0809/refactored-ladder/internal/notifier"
	"github.com/mauv0809/refactored-ladder/internal/rating"
	"github.com/mauv0809/refactored-ladder/internal/scheduler"
)

type Server struct {
	Store          ladder.LadderStore
	Machine        *lifecycle.Machine
	Ratings        *rating.Engine
	Sweeper        *scheduler.Sweeper
	Metrics        metrics.Metrics
	MetricsHandler http.Handler
	Notifier       notifier.Notifier
	Cfg            config.Config
	Router         *http.ServeMux
}
