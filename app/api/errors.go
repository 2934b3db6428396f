package api

import (
	"drivechat/app/service/command"
	"drivechat/app/service/dialogue"
	"drivechat/app/service/transcribe"
	"errors"
	"log/slog"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

const (
	ErrorBadRequest      = "bad_request"
	ErrorNotFound        = "not_found"
	ErrorModelInvocation = "model_invocation"
	ErrorEmptyReply      = "empty_reply"
	ErrorSchemaMismatch  = "schema_mismatch"
	ErrorTranscription   = "transcription"
	ErrorInternal        = "internal"
)

type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

func badRequest(detail string) error {
	return fiber.NewError(fiber.StatusBadRequest, detail)
}

func classify(err error) (int, ErrorResponse) {
	var (
		fiberErr         *fiber.Error
		validationErrs   validator.ValidationErrors
		invocationErr    *dialogue.ModelInvocationError
		emptyReplyErr    *dialogue.EmptyReplyError
		schemaErr        *command.SchemaMismatchError
		transcriptionErr *transcribe.TranscriptionError
	)

	switch {
	case errors.As(err, &validationErrs):
		return fiber.StatusBadRequest, ErrorResponse{Error: ErrorBadRequest, Detail: validationErrs.Error()}
	case errors.As(err, &invocationErr):
		return fiber.StatusBadGateway, ErrorResponse{Error: ErrorModelInvocation, Detail: invocationErr.Error()}
	case errors.As(err, &emptyReplyErr):
		return fiber.StatusBadGateway, ErrorResponse{Error: ErrorEmptyReply, Detail: emptyReplyErr.Error()}
	case errors.As(err, &schemaErr):
		return fiber.StatusBadGateway, ErrorResponse{Error: ErrorSchemaMismatch, Detail: schemaErr.Error()}
	case errors.As(err, &transcriptionErr):
		return fiber.StatusInternalServerError, ErrorResponse{Error: ErrorTranscription, Detail: transcriptionErr.Error()}
	case errors.As(err, &fiberErr):
		switch {
		case fiberErr.Code == fiber.StatusNotFound:
			return fiberErr.Code, ErrorResponse{Error: ErrorNotFound, Detail: fiberErr.Message}
		case fiberErr.Code < fiber.StatusInternalServerError:
			return fiberErr.Code, ErrorResponse{Error: ErrorBadRequest, Detail: fiberErr.Message}
		}
	}

	return fiber.StatusInternalServerError, ErrorResponse{Error: ErrorInternal, Detail: "internal server error"}
}

func errorHandler(c *fiber.Ctx, err error) error {
	status, body := classify(err)

	if status >= fiber.StatusInternalServerError {
		slog.Error("Request failed",
			slog.String("path", c.Path()),
			slog.String("classification", body.Error),
			slog.Any("error", err),
		)
	}

	return c.Status(status).JSON(body)
}
