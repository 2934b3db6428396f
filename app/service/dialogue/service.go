package dialogue

import (
	"context"
	"drivechat/app/client/llm"
	"drivechat/app/config"
	"drivechat/app/service/actuation"
	"drivechat/app/service/command"
	"drivechat/app/service/history"
	"drivechat/app/service/session"
	"log/slog"
	"time"

	_ "embed"

	"github.com/samber/do"
	"github.com/samber/oops"
)

//go:embed system_prompt.txt
var systemPrompt string

// environmentNote is appended to every user message
const environmentNote = "Note: My motors are individually mounted on four corners of the chassis, " +
	"so each motor must get either 1, 0, or -1. Left side motors are left_motors set, " +
	"right side motors are right_motors set. You can interprete the request in any language\n"

type Dispatcher interface {
	Dispatch(ctx context.Context, origin string, args command.Args) actuation.Result
}

type ChatResult struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

type Service struct {
	model    llm.Model
	gateway  Dispatcher
	sessions *session.Store
	schema   command.Schema

	modelTimeout time.Duration
	strict       bool
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	return NewService(
		do.MustInvoke[llm.Model](di),
		do.MustInvoke[*actuation.Service](di),
		do.MustInvoke[*session.Store](di),
		cfg.Model.Timeout,
		cfg.Actuation.StrictMotorValues,
	), nil
}

func NewService(
	model llm.Model,
	gateway Dispatcher,
	sessions *session.Store,
	modelTimeout time.Duration,
	strict bool,
) *Service {
	return &Service{
		model:        model,
		gateway:      gateway,
		sessions:     sessions,
		schema:       command.Direction(),
		modelTimeout: modelTimeout,
		strict:       strict,
	}
}

// Chat runs one turn in the session identified by sessionID.
// An empty or unknown id starts a new session, the id actually used is returned in ChatResult.
func (s *Service) Chat(ctx context.Context, sessionID, text string) (*ChatResult, error) {
	sess, release, created := s.sessions.Acquire(sessionID)
	defer release()
	defer s.sessions.Touch(sess.ID)

	if created && sessionID != "" {
		slog.Info("Unknown session, started a new one",
			slog.String("requested_id", sessionID),
			slog.String("session_id", sess.ID),
		)
	}

	response, err := s.HandleTurn(ctx, sess, text)
	if err != nil {
		// the caller never learns the id of a session created for a failed turn
		if created {
			s.sessions.Delete(sess.ID)
		}

		return nil, oops.
			In("dialogue").
			With("session_id", sess.ID).
			Wrap(err)
	}

	return &ChatResult{
		Response:  response,
		SessionID: sess.ID,
	}, nil
}

// HandleTurn runs the two-pass function calling protocol for one user message.
// The caller must hold the session for the whole call, see session.Store.Acquire.
// Turns are committed to the session only when the whole turn succeeds.
func (s *Service) HandleTurn(ctx context.Context, sess *session.Session, text string) (string, error) {
	userTurn := history.UserText(text + environmentNote)
	turns := append(sess.History(), userTurn)

	reply, err := s.invoke(ctx, turns, passInitial)
	if err != nil {
		return "", err
	}

	call, triggered := reply.FirstCall(command.FunctionName)
	if !triggered {
		narration, ok := reply.FirstText()
		if !ok {
			return "", &EmptyReplyError{Pass: passInitial}
		}

		sess.Append(userTurn, reply)
		return narration, nil
	}

	args, err := command.Decode(call)
	if err != nil {
		return "", err
	}

	result := s.actuate(ctx, sess.ID, args)

	resultTurn := history.FunctionResultTurn(history.FunctionResult{
		ID:     call.ID,
		Name:   call.Name,
		Status: result.Status,
		Detail: result.Detail,
	})
	turns = append(turns, reply, resultTurn)

	followUp, err := s.invoke(ctx, turns, passFollowUp)
	if err != nil {
		return "", err
	}

	narration, ok := followUp.FirstText()
	if !ok {
		return "", &EmptyReplyError{Pass: passFollowUp}
	}

	sess.Append(userTurn, reply, resultTurn, followUp)

	return narration, nil
}

func (s *Service) invoke(ctx context.Context, turns []history.Turn, pass string) (history.Turn, error) {
	ctx, cancel := context.WithTimeout(ctx, s.modelTimeout)
	defer cancel()

	reply, err := s.model.Generate(ctx, llm.Request{
		System:  systemPrompt,
		History: turns,
		Tool:    s.schema,
	})
	if err != nil {
		return history.Turn{}, &ModelInvocationError{Pass: pass, Err: err}
	}

	reply.Role = history.RoleModel

	return reply, nil
}

// actuate dispatches at most once per turn, in strict mode invalid values never reach the broker
func (s *Service) actuate(ctx context.Context, sessionID string, args command.Args) actuation.Result {
	if s.strict {
		if err := args.Validate(); err != nil {
			slog.Warn("Rejected motor command",
				slog.String("session_id", sessionID),
				slog.String("message", args.Format()),
			)

			return actuation.Result{
				Status: actuation.StatusError,
				Detail: "rejected: motor values must be 1, 0 or -1 and speed must be between 0 and 100",
			}
		}
	}

	return s.gateway.Dispatch(ctx, "session:"+sessionID, args)
}
