// Package api exposes the comparison engine over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/TFMV/bdt/pkg/compare"
	"github.com/TFMV/bdt/pkg/core"
	"github.com/TFMV/bdt/pkg/readers"
	"github.com/TFMV/bdt/pkg/rows"
	"github.com/TFMV/bdt/report"
	"github.com/TFMV/bdt/version"
)

// ServerOptions configures the HTTP server.
type ServerOptions struct {
	Port    string
	Prefork bool

	// RequestLog enables the per-request access log.
	RequestLog bool

	// BatchSize is the reader batch size used for comparisons.
	BatchSize int64

	// MaxRowsShown caps the differences returned when a request does not
	// set its own cap. 0 returns all recorded differences.
	MaxRowsShown int

	// DataDir confines the files a compare request may read. Relative
	// request paths are resolved against it. Defaults to ".".
	DataDir string

	Logger *zap.Logger
}

// Server holds the Fiber app instance
type Server struct {
	app    *fiber.App
	opts   ServerOptions
	logger *zap.Logger
}

// CompareRequest is the body of POST /api/v1/compare.
type CompareRequest struct {
	Left            string  `json:"left"`
	Right           string  `json:"right"`
	LeftType        string  `json:"left_type"`
	RightType       string  `json:"right_type"`
	NoHeaderRow     bool    `json:"no_header_row"`
	AbsoluteEpsilon float64 `json:"absolute_epsilon"`
	RelativeEpsilon float64 `json:"relative_epsilon"`
	Limit           uint64  `json:"limit"`
	MaxRowsShown    *int    `json:"max_rows_shown"`
	SuggestRenames  bool    `json:"suggest_renames"`
}

// ErrOutsideDataDir is returned for a request path that resolves outside the
// server's data directory.
var ErrOutsideDataDir = errors.New("path is outside the data directory")

// ErrorResponse is returned with every non-2xx status.
type ErrorResponse struct {
	Error string `json:"error"`
}

// NewServer initializes a new Fiber instance
func NewServer(opts ServerOptions) *Server {
	if opts.Port == "" {
		opts.Port = "8080"
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = readers.DefaultBatchSize
	}
	if opts.DataDir == "" {
		opts.DataDir = "."
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		IdleTimeout:           10 * time.Second,
		ReadTimeout:           10 * time.Second,
		Prefork:               opts.Prefork,
		DisableStartupMessage: true,
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
	})

	// Middleware
	app.Use(recover.New())
	if opts.RequestLog {
		app.Use(fiberlogger.New())
	}

	s := &Server{app: app, opts: opts, logger: logger}

	// Routes
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.SendString("OK")
	})

	app.Get("/version", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"service": "bdt",
			"version": version.Version,
			"build":   version.BuildDate,
			"commit":  version.Commit,
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	v1 := app.Group("/api/v1")
	v1.Post("/compare", s.handleCompare)

	return s
}

// GetApp returns the underlying Fiber app.
func (s *Server) GetApp() *fiber.App {
	return s.app
}

func (s *Server) handleCompare(c *fiber.Ctx) error {
	var req CompareRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
	}
	if req.Left == "" || req.Right == "" {
		return fail(c, fiber.StatusBadRequest, errors.New("left and right are required"))
	}

	maxRows := s.opts.MaxRowsShown
	if req.MaxRowsShown != nil {
		if *req.MaxRowsShown < 0 {
			return fail(c, fiber.StatusBadRequest, errors.New("max_rows_shown must be >= 0"))
		}
		maxRows = *req.MaxRowsShown
	}

	opts := compare.Options{
		Policy: compare.TolerancePolicy{
			AbsoluteEpsilon: req.AbsoluteEpsilon,
			RelativeEpsilon: req.RelativeEpsilon,
		},
		Limit:  req.Limit,
		Logger: s.logger,
	}
	if err := opts.Policy.Validate(); err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}

	leftPath, err := s.resolve(req.Left)
	if err != nil {
		return fail(c, fiber.StatusForbidden, err)
	}
	rightPath, err := s.resolve(req.Right)
	if err != nil {
		return fail(c, fiber.StatusForbidden, err)
	}

	ctx := c.UserContext()
	left, err := s.open(ctx, leftPath, req.LeftType, req.NoHeaderRow)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	defer left.Close()
	right, err := s.open(ctx, rightPath, req.RightType, req.NoHeaderRow)
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err)
	}
	defer right.Close()

	rep, err := compare.Compare(ctx, left, right, opts)
	if err != nil {
		return fail(c, statusFor(err), err)
	}

	s.logger.Info("comparison finished",
		zap.String("left", req.Left),
		zap.String("right", req.Right),
		zap.String("verdict", string(rep.Verdict())))
	rendered := report.Render(rep, maxRows)
	if req.SuggestRenames {
		rendered.SuggestRenames(rep)
	}
	return c.JSON(rendered)
}

// resolve maps a request path to a file under the data directory. Symlinks
// are followed before the containment check when the target exists.
func (s *Server) resolve(path string) (string, error) {
	root, err := filepath.Abs(s.opts.DataDir)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(root); err == nil {
		root = real
	}

	target := filepath.Clean(path)
	if !filepath.IsAbs(target) {
		target = filepath.Join(root, target)
	}
	if real, err := filepath.EvalSymlinks(target); err == nil {
		target = real
	} else if dir, err := filepath.EvalSymlinks(filepath.Dir(target)); err == nil {
		target = filepath.Join(dir, filepath.Base(target))
	}

	rel, err := filepath.Rel(root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideDataDir)
	}
	return target, nil
}

func (s *Server) open(ctx context.Context, path, typ string, noHeader bool) (*rows.ArrowRowSource, error) {
	reader, err := readers.DefaultFactory.Create(ctx, core.ReaderConfig{
		Type:        typ,
		Path:        path,
		BatchSize:   s.opts.BatchSize,
		NoHeaderRow: noHeader,
	})
	if err != nil {
		return nil, fmt.Errorf("cannot open %s: %w", path, err)
	}
	src, err := rows.NewArrowRowSource(reader)
	if err != nil {
		reader.Close()
		return nil, err
	}
	return src, nil
}

// statusFor maps comparison errors to HTTP status codes. Row source
// failures and anything unexpected are server errors.
func statusFor(err error) int {
	switch {
	case errors.Is(err, compare.ErrDuplicateColumnName):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, compare.ErrInvalidPolicy):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func fail(c *fiber.Ctx, status int, err error) error {
	return c.Status(status).JSON(ErrorResponse{Error: err.Error()})
}

// Start runs the server until ctx is cancelled and then shuts it down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.logger.Info("bdt API is running", zap.String("port", s.opts.Port))
		errc <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("received shutdown signal, stopping server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.app.ShutdownWithContext(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down: %w", err)
	}
	return nil
}

// Shutdown stops the server immediately.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
