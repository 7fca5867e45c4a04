// Package controller wires the HTTP surface: route registration,
// middleware, structured logging, and the central error handler. The
// matcher itself lives in the matching package; this package is thin
// glue, per the spec's own framing of the HTTP surface.
package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/qinqiang2000/redflush-matcher/matching"
	"github.com/qinqiang2000/redflush-matcher/model"
	"github.com/qinqiang2000/redflush-matcher/resultsink"
)

type appError struct {
	Code   string
	Status int
	Err    error
	Public string
}

func (e *appError) Error() string { return fmt.Sprintf("%s: %v", e.Code, e.Err) }
func (e *appError) Unwrap() error { return e.Err }

func ErrNotFound(err error) *appError {
	return &appError{Code: "NOT_FOUND", Status: http.StatusNotFound, Err: err}
}
func ErrInvalid(err error, public string) *appError {
	return &appError{Code: "INVALID_INPUT", Status: http.StatusBadRequest, Err: err, Public: public}
}
func ErrInternal(err error) *appError {
	return &appError{Code: "INTERNAL", Status: http.StatusInternalServerError, Err: err}
}

type controller struct {
	store             *model.Store
	sink              resultsink.Sink
	logger            *slog.Logger
	locker            *matching.RedisLocker
	fetchBatchSize    int
	fanOutConcurrency int
}

// buildSink selects the result back-end per cfg.ResultSink, optionally
// wrapping the CSV spool with best-effort S3 archival when
// S3_ARCHIVE_BUCKET is configured. Selection between back-ends is a
// deployment choice, not an algorithm choice (spec §4.7).
func buildSink(ctx context.Context, s *model.Store, logger *slog.Logger) (resultsink.Sink, error) {
	cfg := s.Config
	switch cfg.ResultSink {
	case "csv":
		csv := &resultsink.CSVSink{LogDir: cfg.LogDir}
		if cfg.S3ArchiveBucket == "" {
			return csv, nil
		}
		return resultsink.NewS3ArchiveSink(ctx, csv, cfg.S3ArchiveBucket, cfg.S3ArchiveRegion, logger)
	case "db", "":
		return &resultsink.DBSink{Store: s}, nil
	default:
		return nil, fmt.Errorf("unknown RESULT_SINK %q", cfg.ResultSink)
	}
}

// NewController wires routes, middleware, and starts the server.
func NewController(s *model.Store) error {
	var logger *slog.Logger
	if s.Config.Mode == "development" {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	sink, err := buildSink(context.Background(), s, logger)
	if err != nil {
		return err
	}

	var locker *matching.RedisLocker
	if s.Config.RedisURL != "" {
		locker, err = matching.NewRedisLocker(s.Config.RedisURL, 15*time.Minute)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
	}

	ctrl := controller{
		store:             s,
		sink:              sink,
		logger:            logger,
		locker:            locker,
		fetchBatchSize:    s.Config.BatchSize,
		fanOutConcurrency: s.Config.FanOutConcurrency,
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Pre(middleware.RemoveTrailingSlash())
	e.Use(middleware.BodyLimit("20M"))
	e.Use(middleware.RequestID())
	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		DisableStackAll:   false,
		DisablePrintStack: true,
	}))

	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()
			res := c.Response()
			rid := res.Header().Get(echo.HeaderXRequestID)

			reqLogger := logger.With("request_id", rid).WithGroup("http").With(
				"method", req.Method,
				"path", req.URL.Path,
				"remote_ip", c.RealIP(),
			)
			c.Set("logger", reqLogger)

			err := next(c)

			latency := time.Since(start)
			attrs := []any{
				"status", res.Status,
				"latency_ms", float64(latency.Microseconds()) / 1000.0,
			}
			switch {
			case res.Status >= 500:
				reqLogger.Error("http_request", attrs...)
			case res.Status >= 400:
				reqLogger.Warn("http_request", attrs...)
			default:
				reqLogger.Info("http_request", attrs...)
			}
			return err
		}
	})

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		l, _ := c.Get("logger").(*slog.Logger)
		if l == nil {
			l = logger
		}

		var ae *appError
		var he *echo.HTTPError
		switch {
		case errors.As(err, &ae):
		case errors.As(err, &he):
			public := ""
			if he.Code >= 400 && he.Code < 500 {
				public = fmt.Sprint(he.Message)
			}
			ae = &appError{
				Code:   httpStatusToCode(he.Code),
				Status: he.Code,
				Err:    fmt.Errorf("%v", he.Message),
				Public: public,
			}
		case errors.Is(err, echo.ErrNotFound):
			ae = ErrNotFound(err)
		case errors.Is(err, echo.ErrMethodNotAllowed):
			ae = &appError{Code: "METHOD_NOT_ALLOWED", Status: http.StatusMethodNotAllowed, Err: err}
		default:
			ae = ErrInternal(err)
		}

		attrs := []any{"status", ae.Status, "code", ae.Code, "error", ae.Err.Error()}
		if ae.Status >= 500 {
			l.Error("handler_error", attrs...)
		} else {
			l.Warn("handler_error", attrs...)
		}

		_ = c.JSON(ae.Status, map[string]any{
			"success":    false,
			"message":    userMessage(ae),
			"error_code": ae.Code,
			"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
		})
	}

	e.GET("/health", ctrl.health)
	e.POST("/api/match/batch", ctrl.matchBatchV1)
	e.POST("/api/match/batch/v2", ctrl.matchBatchV2)

	addr := fmt.Sprintf("%s:%d", s.Config.ServerHost, s.Config.ServerPort)
	if err := e.Start(addr); err != nil {
		return fmt.Errorf("cannot start application: %w", err)
	}
	return nil
}

func userMessage(ae *appError) string {
	if ae.Public != "" {
		return ae.Public
	}
	switch ae.Code {
	case "INVALID_INPUT":
		return "the request is invalid"
	case "NOT_FOUND":
		return "the requested resource was not found"
	case "METHOD_NOT_ALLOWED":
		return "method not allowed"
	default:
		return "an internal error occurred"
	}
}

func httpStatusToCode(status int) string {
	switch status {
	case 400:
		return "INVALID_INPUT"
	case 401:
		return "UNAUTHORIZED"
	case 403:
		return "FORBIDDEN"
	case 404:
		return "NOT_FOUND"
	case 405:
		return "METHOD_NOT_ALLOWED"
	default:
		if status >= 500 {
			return "INTERNAL"
		}
		return "ERROR"
	}
}
