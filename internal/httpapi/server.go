// Package httpapi serves the operational endpoints of the clustering
// service: health, batch statistics and a read-only view of recent clusters.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/db"
	"github.com/Jam0k/threatcluster-cluster-service-sub000/internal/globaltime"
)

const (
	defaultClusterLimit = 25
	maxClusterLimit     = 200
)

type Options struct {
	ListenAddr      string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type Server struct {
	pool   *db.Pool
	logger zerolog.Logger
	opts   Options
}

type statsResponse struct {
	Articles           int64      `json:"articles"`
	UnclusteredRecent  int64      `json:"unclustered_recent"`
	ActiveClusters     int64      `json:"active_clusters"`
	ClusterMemberships int64      `json:"cluster_memberships"`
	LastClusterCreated *time.Time `json:"last_cluster_created,omitempty"`
}

type clusterListItem struct {
	ClusterID      int64     `json:"cluster_id"`
	ClusterUUID    string    `json:"cluster_uuid"`
	Name           string    `json:"name"`
	CoherenceScore float64   `json:"coherence_score"`
	ArticleCount   int64     `json:"article_count"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func NewServer(pool *db.Pool, logger zerolog.Logger, opts Options) *Server {
	if strings.TrimSpace(opts.ListenAddr) == "" {
		opts.ListenAddr = ":8087"
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		pool:   pool,
		logger: logger,
		opts:   opts,
	}
}

// Start runs the server until ctx is cancelled, then shuts it down.
func (s *Server) Start(ctx context.Context) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("server is not initialized")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = s.httpErrorHandler

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Err(v.Error).
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Str("request_id", v.RequestID).
					Msg("http request failed")
				return nil
			}
			s.logger.Info().
				Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Msg("http request")
			return nil
		},
	}))

	api := e.Group("/api/v1")
	api.GET("/health", s.handleHealth)
	api.GET("/stats", s.handleStats)
	api.GET("/clusters", s.handleClusters)

	httpServer := &http.Server{
		Addr:         s.opts.ListenAddr,
		Handler:      e,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
		defer cancel()
		if shutdownErr := e.Shutdown(shutdownCtx); shutdownErr != nil {
			s.logger.Error().Err(shutdownErr).Msg("ops server shutdown failed")
		}
	}()

	s.logger.Info().Str("addr", s.opts.ListenAddr).Msg("ops server started")

	if err := e.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("start ops server: %w", err)
	}
	s.logger.Info().Msg("ops server stopped")
	return nil
}

func (s *Server) httpErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	message := "Internal server error"
	if he, ok := err.(*echo.HTTPError); ok {
		status = he.Code
		switch v := he.Message.(type) {
		case string:
			if strings.TrimSpace(v) != "" {
				message = v
			}
		default:
			if text := strings.TrimSpace(http.StatusText(status)); text != "" {
				message = text
			}
		}
	} else if err != nil {
		message = err.Error()
	}

	if status >= 500 {
		_ = internalError(c, "Internal server error")
		return
	}
	_ = fail(c, status, message, nil)
}

func (s *Server) handleHealth(c echo.Context) error {
	if err := s.pool.DB().PingContext(c.Request().Context()); err != nil {
		s.logger.Error().Err(err).Msg("health check database ping failed")
		return internalError(c, "Database unreachable")
	}
	return success(c, map[string]any{
		"service": "clusterd",
		"time":    globaltime.UTC(),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.queryStats(c.Request().Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("query stats failed")
		return internalError(c, "Failed to load stats")
	}
	return success(c, stats)
}

func (s *Server) handleClusters(c echo.Context) error {
	limit, err := parsePositiveInt(c.QueryParam("limit"), defaultClusterLimit, 1, maxClusterLimit)
	if err != nil {
		return failValidation(c, map[string]string{"limit": err.Error()})
	}

	items, err := s.queryRecentClusters(c.Request().Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("query recent clusters failed")
		return internalError(c, "Failed to load clusters")
	}
	return success(c, map[string]any{
		"items": items,
		"limit": limit,
	})
}

func (s *Server) queryStats(ctx context.Context) (statsResponse, error) {
	const q = `
SELECT
	(SELECT COUNT(*) FROM cluster_data.articles),
	(SELECT COUNT(*)
	 FROM cluster_data.articles a
	 WHERE a.extracted_entities IS NOT NULL
	   AND NOT EXISTS (
		SELECT 1
		FROM cluster_data.cluster_articles ca
		JOIN cluster_data.clusters c ON c.cluster_id = ca.cluster_id
		WHERE ca.article_id = a.article_id
		  AND c.is_active
	)),
	(SELECT COUNT(*) FROM cluster_data.clusters WHERE is_active),
	(SELECT COUNT(*) FROM cluster_data.cluster_articles),
	(SELECT MAX(created_at) FROM cluster_data.clusters)
`

	var stats statsResponse
	err := s.pool.QueryRow(ctx, q).Scan(
		&stats.Articles,
		&stats.UnclusteredRecent,
		&stats.ActiveClusters,
		&stats.ClusterMemberships,
		&stats.LastClusterCreated,
	)
	if err != nil {
		return statsResponse{}, fmt.Errorf("query stats: %w", err)
	}
	return stats, nil
}

func (s *Server) queryRecentClusters(ctx context.Context, limit int) ([]clusterListItem, error) {
	const q = `
SELECT
	c.cluster_id,
	c.cluster_uuid,
	c.name,
	c.coherence_score,
	COUNT(ca.article_id),
	c.created_at,
	c.updated_at
FROM cluster_data.clusters c
LEFT JOIN cluster_data.cluster_articles ca ON ca.cluster_id = c.cluster_id
WHERE c.is_active
GROUP BY c.cluster_id
ORDER BY c.created_at DESC
LIMIT $1
`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent clusters: %w", err)
	}
	defer rows.Close()

	items := make([]clusterListItem, 0, limit)
	for rows.Next() {
		var item clusterListItem
		if err := rows.Scan(
			&item.ClusterID,
			&item.ClusterUUID,
			&item.Name,
			&item.CoherenceScore,
			&item.ArticleCount,
			&item.CreatedAt,
			&item.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan recent cluster: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent clusters: %w", err)
	}
	return items, nil
}

func parsePositiveInt(raw string, def, minValue, maxValue int) (int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return def, nil
	}
	value, err := strconv.Atoi(trimmed)
	if err != nil {
		return 0, fmt.Errorf("must be an integer")
	}
	if value < minValue || value > maxValue {
		return 0, fmt.Errorf("must be between %d and %d", minValue, maxValue)
	}
	return value, nil
}
