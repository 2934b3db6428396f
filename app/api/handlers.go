package api

import (
	"bytes"
	"drivechat/app/service/journal"
	"drivechat/app/service/session"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/oops"
)

const (
	statusEnded    = "ended"
	statusNotFound = "not_found"

	audioFormField = "file"
)

type StartSessionResponse struct {
	SessionID string `json:"session_id"`
}

type EndSessionRequest struct {
	SessionID string `json:"session_id" validate:"required"`
}

type EndSessionResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type ChatRequest struct {
	Message   string `json:"message" validate:"required"`
	SessionID string `json:"session_id"`
}

type TranscriptionResponse struct {
	Transcription string `json:"transcription"`
}

type SessionInfoResponse struct {
	session.Info
	Active bool `json:"active"`
}

type InactiveSessionResponse struct {
	SessionID string `json:"session_id"`
	Active    bool   `json:"active"`
}

type ActiveSessionsResponse struct {
	ActiveSessions int `json:"active_sessions"`
}

type CommandsResponse struct {
	Commands []journal.Entry `json:"commands"`
}

func (s *Server) parseBody(c *fiber.Ctx, dst any) error {
	if err := c.BodyParser(dst); err != nil {
		return badRequest("invalid request body: " + err.Error())
	}

	return s.validate.Struct(dst)
}

func (s *Server) handleStartSession(c *fiber.Ctx) error {
	return c.JSON(StartSessionResponse{SessionID: s.sessions.Create()})
}

// handleEndSession answers 200 for unknown ids too, ending a session twice is not an error
func (s *Server) handleEndSession(c *fiber.Ctx) error {
	var req EndSessionRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}

	status := statusNotFound
	if s.sessions.Delete(req.SessionID) {
		status = statusEnded
	}

	return c.JSON(EndSessionResponse{
		Status:    status,
		SessionID: req.SessionID,
	})
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := s.parseBody(c, &req); err != nil {
		return err
	}

	result, err := s.chat.Chat(c.UserContext(), req.SessionID, req.Message)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

func (s *Server) handleTranscribeAudio(c *fiber.Ctx) error {
	audio, err := readAudio(c)
	if err != nil {
		return err
	}

	text, err := s.transcriber.Transcribe(c.UserContext(), audio)
	if err != nil {
		return err
	}

	return c.JSON(TranscriptionResponse{Transcription: text})
}

// readAudio accepts a multipart upload in the "file" field or the raw request body
func readAudio(c *fiber.Ctx) ([]byte, error) {
	if !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return bytes.Clone(c.Body()), nil
	}

	header, err := c.FormFile(audioFormField)
	if err != nil {
		return nil, badRequest("missing audio file")
	}

	file, err := header.Open()
	if err != nil {
		return nil, oops.In("api").Wrapf(err, "failed to open uploaded audio")
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		return nil, oops.In("api").Wrapf(err, "failed to read uploaded audio")
	}

	return audio, nil
}

func (s *Server) handleSessionInfo(c *fiber.Ctx) error {
	id := c.Params("id")

	info, ok := s.sessions.Info(id)
	if !ok {
		return c.JSON(InactiveSessionResponse{SessionID: id})
	}

	return c.JSON(SessionInfoResponse{Info: info, Active: true})
}

func (s *Server) handleActiveSessions(c *fiber.Ctx) error {
	return c.JSON(ActiveSessionsResponse{ActiveSessions: s.sessions.Count()})
}

func (s *Server) handleCommands(c *fiber.Ctx) error {
	entries, err := s.commands.Recent(c.UserContext(), c.QueryInt("limit", journal.DefaultLimit))
	if err != nil {
		return err
	}

	if entries == nil {
		entries = []journal.Entry{}
	}

	return c.JSON(CommandsResponse{Commands: entries})
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"ok": true})
}
