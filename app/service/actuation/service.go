package actuation

import (
	"context"
	"drivechat/app/client/mqtt"
	"drivechat/app/config"
	"drivechat/app/service/command"
	"drivechat/app/service/journal"
	"fmt"
	"log/slog"
	"time"

	"github.com/samber/do"
)

const (
	StatusOK    = "ok"
	StatusError = "error"

	DetailSent = "sent"
)

// Result is what the model gets to narrate, a publish failure is data rather than an error
type Result struct {
	Status string `json:"status"`
	Detail string `json:"detail"`
}

func (r Result) OK() bool {
	return r.Status == StatusOK
}

type Publisher interface {
	Publish(ctx context.Context, topic, payload string) error
}

type Recorder interface {
	Add(entry journal.Entry)
}

type Service struct {
	publisher Publisher
	recorder  Recorder
	topic     string
	timeout   time.Duration
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[*mqtt.Client](di),
		do.MustInvoke[*journal.Queue](di),
		cfg.MQTT.Topic,
		cfg.MQTT.PublishTimeout,
	), nil
}

func NewService(publisher Publisher, recorder Recorder, topic string, timeout time.Duration) *Service {
	return &Service{
		publisher: publisher,
		recorder:  recorder,
		topic:     topic,
		timeout:   timeout,
	}
}

// Dispatch makes exactly one publish attempt. It never returns an error and never panics,
// every failure is reported through Result.
func (s *Service) Dispatch(ctx context.Context, origin string, args command.Args) (result Result) {
	message := args.Format()

	defer func() {
		if r := recover(); r != nil {
			result = Result{Status: StatusError, Detail: fmt.Sprintf("publisher panic: %v", r)}
		}

		s.record(origin, args, message, result)
	}()

	publishCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.publisher.Publish(publishCtx, s.topic, message); err != nil {
		slog.Error("Failed to dispatch motor command",
			slog.String("origin", origin),
			slog.String("message", message),
			slog.Any("error", err),
		)

		return Result{Status: StatusError, Detail: err.Error()}
	}

	slog.Info("Motor command dispatched",
		slog.String("origin", origin),
		slog.String("message", message),
	)

	return Result{Status: StatusOK, Detail: DetailSent}
}

func (s *Service) record(origin string, args command.Args, message string, result Result) {
	if s.recorder == nil {
		return
	}

	s.recorder.Add(journal.Entry{
		Origin:  origin,
		Right:   args.Right,
		Left:    args.Left,
		Speed:   args.Speed,
		Message: message,
		Status:  result.Status,
		Detail:  result.Detail,
	})
}
