package api

import (
	"context"
	"drivechat/app/config"
	"drivechat/app/service/dialogue"
	"drivechat/app/service/journal"
	"drivechat/app/service/session"
	"drivechat/app/service/transcribe"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/samber/do"
	"github.com/samber/oops"
)

const shutdownTimeout = 5 * time.Second

type Chatter interface {
	Chat(ctx context.Context, sessionID, text string) (*dialogue.ChatResult, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

type CommandLister interface {
	Recent(ctx context.Context, limit int) ([]journal.Entry, error)
}

type Server struct {
	app      *fiber.App
	addr     string
	validate *validator.Validate

	sessions    *session.Store
	chat        Chatter
	transcriber Transcriber
	commands    CommandLister
}

func New(di *do.Injector) (*Server, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewServer(
		cfg.HTTP,
		do.MustInvoke[*session.Store](di),
		do.MustInvoke[*dialogue.Service](di),
		do.MustInvoke[*transcribe.Service](di),
		do.MustInvoke[*journal.Service](di),
	), nil
}

func NewServer(
	cfg config.HTTP,
	sessions *session.Store,
	chat Chatter,
	transcriber Transcriber,
	commands CommandLister,
) *Server {
	s := &Server{
		addr:        cfg.Addr,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		sessions:    sessions,
		chat:        chat,
		transcriber: transcriber,
		commands:    commands,
	}

	app := fiber.New(fiber.Config{
		AppName:               "drivechat",
		DisableStartupMessage: true,
		BodyLimit:             cfg.BodyLimit,
		ErrorHandler:          errorHandler,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	app.Use(requestLogger)

	app.Post("/start_session", s.handleStartSession)
	app.Post("/end_session", s.handleEndSession)
	app.Post("/chat", s.handleChat)
	app.Post("/transcribe_audio", s.handleTranscribeAudio)
	app.Get("/session_info/:id", s.handleSessionInfo)
	app.Get("/active_sessions", s.handleActiveSessions)
	app.Get("/commands", s.handleCommands)
	app.Get("/healthz", s.handleHealth)

	s.app = app
	return s
}

func (s *Server) App() *fiber.App {
	return s.app
}

// Run listens until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	go func() {
		<-ctx.Done()

		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			slog.Error("Failed to shutdown HTTP server", slog.Any("error", err))
		}
	}()

	slog.Info("HTTP server started", slog.String("addr", s.addr))

	if err := s.app.Listen(s.addr); err != nil {
		return oops.In("api").With("addr", s.addr).Wrapf(err, "HTTP server failed")
	}

	return nil
}

// requestLogger resolves errors itself so the logged status is the one sent to the client
func requestLogger(c *fiber.Ctx) error {
	start := time.Now()

	if err := c.Next(); err != nil {
		if handlerErr := c.App().ErrorHandler(c, err); handlerErr != nil {
			_ = c.SendStatus(fiber.StatusInternalServerError)
		}
	}

	status := c.Response().StatusCode()

	level := slog.LevelDebug
	if status >= fiber.StatusInternalServerError {
		level = slog.LevelWarn
	}

	slog.Log(c.UserContext(), level, "HTTP request",
		slog.String("method", c.Method()),
		slog.String("path", c.Path()),
		slog.Int("status", status),
		slog.Duration("duration", time.Since(start)),
	)

	return nil
}
