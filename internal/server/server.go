package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/validator"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

type Server struct {
	e   *echo.Echo
	cfg config.Config
	log *zap.Logger
}

// echoの共通設定（recover / request id / アクセスログ / CORS / validator）
func New(cfg config.Config, log *zap.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validator.NewRequestValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(logger.RequestLogger(log))
	e.Use(echomw.BodyLimit("1M"))

	origins := []string{"*"}
	if cfg.FEURL != "" {
		origins = []string{cfg.FEURL}
	}
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType},
	}))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	return &Server{e: e, cfg: cfg, log: log}
}

func (s *Server) Echo() *echo.Echo { return s.e }

// ctxがキャンセルされたらgracefulに止める
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server started", zap.String("port", s.cfg.Port))
		if err := s.e.Start(":" + s.cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("http server shutting down")
	return s.e.Shutdown(shutdownCtx)
}
