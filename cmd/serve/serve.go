package serve

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/sthembisoo/reportit/bridge"
	"github.com/sthembisoo/reportit/report"
	"github.com/sthembisoo/reportit/utils/logger"
)

const shutdownTimeout = 5 * time.Second

var (
	flagAddr      string
	flagStorePath string
	flagQuiet     bool
	flagLogLevel  string
)

func NewCmdServe() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a collector for the HTTP bridge",
		Long: `Run a collector for the HTTP bridge.

The collector accepts report JSON on POST /exception, prints each report and
optionally persists it to a SQLite store so it can be browsed with
"reportit reports --server".

Examples:
  # Listen on the default bridge endpoint
  reportit serve

  # Persist received reports
  reportit serve --addr :9000 --store .cursor/collector.db`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return start(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&flagAddr, "addr", "a", ":7331", "Address to listen on")
	cmd.Flags().StringVarP(&flagStorePath, "store", "s", "", "SQLite store for received reports (optional)")
	cmd.Flags().BoolVarP(&flagQuiet, "quiet", "q", false, "Do not print received reports")
	cmd.Flags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	return cmd
}

func start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	log := logger.NewWithWriter(os.Stderr, logger.Config{Level: flagLogLevel, Component: "collector"})

	var store *bridge.StoreBridge
	if flagStorePath != "" {
		s, err := bridge.NewStoreBridge(bridge.StoreConfig{Path: flagStorePath})
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer s.Close()
		store = s
	}

	var out io.Writer = os.Stdout
	if flagQuiet {
		out = io.Discard
	}

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:              flagAddr,
		Handler:           NewRouter(Options{Store: store, Output: out, Logger: log}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("collector listening", "addr", flagAddr, "store", flagStorePath)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("collector failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down collector")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down collector: %w", err)
	}
	return nil
}

// Options configures the collector router
type Options struct {
	Store    *bridge.StoreBridge // nil disables persistence and the /reports endpoints
	Output   io.Writer           // receives the text rendering of each report
	Logger   *slog.Logger
	Registry *prometheus.Registry // nil creates a private registry
}

type collectorMetrics struct {
	received *prometheus.CounterVec
}

func newCollectorMetrics(reg prometheus.Registerer) *collectorMetrics {
	return &collectorMetrics{
		received: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "reportit_collector_reports_received_total",
			Help: "Reports received by the collector by exception type",
		}, []string{"exception_type"}),
	}
}

// NewRouter builds the collector HTTP handler
func NewRouter(opts Options) *gin.Engine {
	if opts.Output == nil {
		opts.Output = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = logger.Discard()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
	}
	metrics := newCollectorMetrics(opts.Registry)

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Registry, promhttp.HandlerOpts{})))
	router.POST("/exception", receiveReport(opts, metrics))

	reports := router.Group("/reports")
	reports.Use(requireStore(opts.Store))
	reports.GET("", ListReports(opts.Store))
	reports.GET("/:id", GetReport(opts.Store))

	return router
}

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// exceptionRequest is the body accepted on POST /exception
type exceptionRequest struct {
	ID               string         `json:"id"`
	Timestamp        string         `json:"timestamp" binding:"required"`
	ExceptionType    string         `json:"exception_type" binding:"required"`
	ExceptionMessage string         `json:"exception_message"`
	Traceback        string         `json:"traceback"`
	Frames           []report.Frame `json:"frames"`
	ThreadInfo       report.Thread  `json:"thread_info"`
	Scope            string         `json:"scope"`
}

func (r exceptionRequest) toReport() report.Report {
	id := r.ID
	if id == "" {
		id = uuid.NewString()
	}
	return report.Report{
		ID:               id,
		Timestamp:        r.Timestamp,
		ExceptionType:    r.ExceptionType,
		ExceptionMessage: r.ExceptionMessage,
		Traceback:        r.Traceback,
		Frames:           r.Frames,
		ThreadInfo:       r.ThreadInfo,
		Scope:            r.Scope,
	}
}

// receiveReport accepts a report posted by the HTTP bridge
func receiveReport(opts Options, metrics *collectorMetrics) gin.HandlerFunc {
	var mu sync.Mutex
	return func(c *gin.Context) {
		var req exceptionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			opts.Logger.Warn("rejected malformed report", "error", err)
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid report payload"})
			return
		}
		rep := req.toReport()

		metrics.received.WithLabelValues(rep.ExceptionType).Inc()

		mu.Lock()
		_, err := io.WriteString(opts.Output, rep.Text())
		mu.Unlock()
		if err != nil {
			opts.Logger.Warn("failed to print report", "report_id", rep.ID, "error", err)
		}

		if opts.Store != nil {
			if err := opts.Store.Send(c.Request.Context(), &rep); err != nil {
				opts.Logger.Error("failed to store report", "report_id", rep.ID, "error", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to store report"})
				return
			}
		}

		opts.Logger.Debug("report received", "report_id", rep.ID, "type", rep.ExceptionType)
		c.JSON(http.StatusAccepted, gin.H{"status": "received", "id": rep.ID})
	}
}

func requireStore(store *bridge.StoreBridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		if store == nil {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "collector is running without a store"})
			return
		}
		c.Next()
	}
}

// ListReports returns stored reports, newest first. Query parameters scope,
// type, thread and limit filter the result.
func ListReports(store *bridge.StoreBridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := bridge.ReportQuery{
			Scope:  c.Query("scope"),
			Type:   c.Query("type"),
			Thread: c.Query("thread"),
		}
		if v := c.Query("limit"); v != "" {
			limit, err := strconv.Atoi(v)
			if err != nil || limit < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			q.Limit = limit
		}

		reports, err := store.Query(c.Request.Context(), q)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query reports"})
			return
		}
		if reports == nil {
			reports = []*report.Report{}
		}
		c.JSON(http.StatusOK, reports)
	}
}

// GetReport returns one stored report by id
func GetReport(store *bridge.StoreBridge) gin.HandlerFunc {
	return func(c *gin.Context) {
		rep, err := store.Get(c.Request.Context(), c.Param("id"))
		if errors.Is(err, bridge.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load report"})
			return
		}
		c.JSON(http.StatusOK, rep)
	}
}
