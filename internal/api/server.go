package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/nerrad567/sws-bridge/internal/controller"
	"github.com/nerrad567/sws-bridge/internal/encoder"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/config"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/logging"
	"github.com/nerrad567/sws-bridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/sws-bridge/internal/relay"
	"github.com/nerrad567/sws-bridge/internal/scheduler"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Console keepalive defaults, in seconds, and frame limit in bytes.
const (
	defaultPingInterval   = 30
	defaultPongTimeout    = 10
	defaultMaxMessageSize = 256
)

// LinkStatus reports the state of the controller link.
type LinkStatus interface {
	Stats() controller.Stats
	Target() string
}

// TruncationCounter reports how many commands and responses were clipped.
type TruncationCounter interface {
	Truncations() int64
	Capacity() int
}

// BrokerStatus reports the state of the MQTT side channel.
type BrokerStatus interface {
	IsConnected() bool
	Stats() mqtt.Stats
}

// WriteStatus reports the state of the telemetry writer.
type WriteStatus interface {
	IsConnected() bool
	WriteErrors() int64
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Logger    *logging.Logger
	Scheduler *scheduler.Scheduler
	Relay     *relay.Relay
	Axes      *encoder.Axes
	Link      LinkStatus        // optional
	Bounds    TruncationCounter // optional
	MQTT      BrokerStatus      // optional
	Influx    WriteStatus       // optional
	Version   string
}

// Server is the HTTP API server.
//
// It manages the HTTP listener, routes, middleware, and the console hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	logger    *logging.Logger
	sched     *scheduler.Scheduler
	relay     *relay.Relay
	axes      *encoder.Axes
	link      LinkStatus
	bounds    TruncationCounter
	mqtt      BrokerStatus
	influx    WriteStatus
	version   string
	startTime time.Time
	server    *http.Server
	hub       *Hub
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Scheduler == nil {
		return nil, fmt.Errorf("scheduler is required")
	}
	if deps.Relay == nil {
		return nil, fmt.Errorf("relay is required")
	}
	if deps.Axes == nil {
		deps.Axes = encoder.NewAxes()
	}
	if deps.WS.PingInterval <= 0 {
		deps.WS.PingInterval = defaultPingInterval
	}
	if deps.WS.PongTimeout <= 0 {
		deps.WS.PongTimeout = defaultPongTimeout
	}
	if deps.WS.MaxMessageSize <= 0 {
		deps.WS.MaxMessageSize = defaultMaxMessageSize
	}

	return &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		logger:    deps.Logger,
		sched:     deps.Scheduler,
		relay:     deps.Relay,
		axes:      deps.Axes,
		link:      deps.Link,
		bounds:    deps.Bounds,
		mqtt:      deps.MQTT,
		influx:    deps.Influx,
		version:   deps.Version,
		startTime: time.Now(),
		hub:       NewHub(deps.Logger),
	}, nil
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}

// Handler returns the routed handler without starting a listener.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}
