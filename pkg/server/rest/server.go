package rest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	_ "github.com/lintang-b-s/navigatorx-ch/docs"
	"github.com/lintang-b-s/navigatorx-ch/pkg/metrics"
	"github.com/lintang-b-s/navigatorx-ch/pkg/util"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const shutdownTimeout = 10 * time.Second

//	@title			navigatorx API
//	@version		1.0
//	@description	openstreetmap routing engine in go. Contraction Hierarchies with a bidirectional A* fallback, Yen's k shortest paths for alternatives.

//	@license.name	GNU Affero General Public License v3.0
//	@license.url	https://www.gnu.org/licenses/gpl-3.0.en.html

// @BasePath	/api
// @schemes	http
func NewRouter(svc RoutingService, cfg util.ServerConfig, m *metrics.Monitor, log *zap.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(Logger(log))
	r.Use(middleware.Recoverer)
	r.Use(PromeHttpMiddleware(m))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
	r.Use(middleware.Heartbeat("/healthz"))

	if cfg.UseRateLimit {
		r.Use(Limit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)))
	}
	if cfg.Timeout > 0 {
		r.Use(middleware.Timeout(cfg.Timeout))
	}

	r.Mount("/debug", middleware.Profiler())
	if reg := m.Registry(); reg != nil {
		r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	NavigatorRouter(r, svc, log)
	return r
}

// Serve runs the HTTP server until ctx is canceled, then shuts it down.
func Serve(ctx context.Context, h http.Handler, cfg util.ServerConfig, log *zap.Logger) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: h,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Timeout + 5*time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		log.Info("API running", zap.Int("port", cfg.Port))
		serverErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("context canceled, shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
