package transcribe

import (
	"context"
	"drivechat/app/client/speechkit"
	"drivechat/app/config"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/do"
	"golang.org/x/sync/errgroup"
)

const (
	bufferSize = 4096
)

// TranscriptionError covers every failure of a transcription request
type TranscriptionError struct {
	Detail string
	Err    error
}

func (e *TranscriptionError) Error() string {
	if e.Err == nil {
		return e.Detail
	}
	return fmt.Sprintf("%s: %v", e.Detail, e.Err)
}

func (e *TranscriptionError) Unwrap() error {
	return e.Err
}

type Stream interface {
	SendConfig() error
	Send(content []byte) error
	CloseSend() error
	Recv() ([]string, error)
	Close() error
}

type Recognizer interface {
	Start(ctx context.Context) (Stream, error)
}

type Decoder interface {
	Decode(ctx context.Context, audio []byte) (io.ReadCloser, error)
}

type Service struct {
	recognizer Recognizer
	decoder    Decoder
	timeout    time.Duration
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)

	var recognizer Recognizer

	client, err := do.Invoke[*speechkit.YandexSpeechKit](di)
	if err != nil {
		slog.Warn("Speech client is not initialized, transcription requests will fail", slog.Any("error", err))
	} else {
		recognizer = speechkitRecognizer{client: client}
	}

	return NewService(recognizer, FFmpegDecoder{Binary: cfg.Speech.FFmpeg}, cfg.Speech.Timeout), nil
}

func NewService(recognizer Recognizer, decoder Decoder, timeout time.Duration) *Service {
	return &Service{
		recognizer: recognizer,
		decoder:    decoder,
		timeout:    timeout,
	}
}

// Transcribe decodes a complete audio upload and returns the recognized text
func (s *Service) Transcribe(ctx context.Context, audio []byte) (string, error) {
	if s.recognizer == nil {
		return "", &TranscriptionError{Detail: "speech client is not initialized"}
	}

	if len(audio) == 0 {
		return "", &TranscriptionError{Detail: "audio is empty"}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pcm, err := s.decoder.Decode(ctx, audio)
	if err != nil {
		return "", &TranscriptionError{Detail: "failed to decode audio", Err: err}
	}
	defer pcm.Close()

	g, gctx := errgroup.WithContext(ctx)

	stream, err := s.recognizer.Start(gctx)
	if err != nil {
		return "", &TranscriptionError{Detail: "failed to start recognition", Err: err}
	}
	defer stream.Close()

	var phrases []string

	g.Go(func() error {
		return s.streamAudio(gctx, pcm, stream)
	})

	g.Go(func() error {
		result, err := s.receivePhrases(gctx, stream)
		phrases = result
		return err
	})

	if err = g.Wait(); err != nil {
		return "", &TranscriptionError{Detail: "speech recognition failed", Err: err}
	}

	text := strings.Join(phrases, " ")

	slog.Debug("Audio transcribed",
		slog.Int("audio_bytes", len(audio)),
		slog.Int("phrases", len(phrases)),
	)

	return text, nil
}

func (s *Service) streamAudio(ctx context.Context, pcm io.ReadCloser, stream Stream) error {
	if err := stream.SendConfig(); err != nil {
		return fmt.Errorf("failed to send audio config: %w", err)
	}

	buffer := make([]byte, bufferSize)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		n, err := pcm.Read(buffer)
		if n > 0 {
			if sendErr := stream.Send(buffer[:n]); sendErr != nil {
				return fmt.Errorf("failed to send audio: %w", sendErr)
			}
		}

		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read audio: %w", err)
		}
	}

	if err := pcm.Close(); err != nil {
		return err
	}

	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close audio stream: %w", err)
	}

	return nil
}

// receivePhrases collects the best alternative of every final result until the recognizer ends the stream
func (s *Service) receivePhrases(ctx context.Context, stream Stream) ([]string, error) {
	var phrases []string

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		sentences, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return phrases, nil
		}
		if err != nil {
			return nil, fmt.Errorf("Recv: %w", err)
		}

		if len(sentences) > 0 {
			phrases = append(phrases, sentences[0])
		}
	}
}

type speechkitRecognizer struct {
	client *speechkit.YandexSpeechKit
}

func (r speechkitRecognizer) Start(ctx context.Context) (Stream, error) {
	handle, err := r.client.Start(ctx)
	if err != nil {
		return nil, err
	}
	return handle, nil
}
