package transcribe

import (
	"bufio"
	"bytes"
	"context"
	"drivechat/app/client/speechkit"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/samber/oops"
)

// FFmpegDecoder converts any container ffmpeg understands (WEBM/Opus uploads included)
// into the raw PCM layout the recognizer expects
type FFmpegDecoder struct {
	Binary string
}

func (d FFmpegDecoder) Decode(ctx context.Context, audio []byte) (io.ReadCloser, error) {
	stream, err := NewFFmpegStream(ctx, d.Binary, bytes.NewReader(audio))
	if err != nil {
		return nil, err
	}

	if err = stream.Start(); err != nil {
		return nil, err
	}

	return stream, nil
}

// FFmpegStream reads from stdin, decoded audio is read from the stream itself
type FFmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu       sync.Mutex
	eof      bool
	closed   bool
	lastLine string
}

func NewFFmpegStream(ctx context.Context, binary string, input io.Reader) (*FFmpegStream, error) {
	args := []string{
		"-loglevel", "warning",
		"-i", "pipe:0",
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", strconv.Itoa(speechkit.Channels),
		"-ar", strconv.Itoa(speechkit.SampleRate),
		"-f", "s16le",
		"-",
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = input
	slog.Debug("Running ffmpeg", "cmd", binary+" "+strings.Join(args, " "))

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, oops.In("ffmpeg").Wrapf(err, "failed to create stdout pipe")
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, oops.In("ffmpeg").Wrapf(err, "failed to create stderr pipe")
	}

	return &FFmpegStream{
		cmd:    cmd,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (f *FFmpegStream) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.cmd.Start(); err != nil {
		return oops.In("ffmpeg").Wrapf(err, "failed to start ffmpeg")
	}

	go f.logStderr()

	return nil
}

func (f *FFmpegStream) Read(p []byte) (int, error) {
	n, err := f.stdout.Read(p)
	if errors.Is(err, io.EOF) {
		f.mu.Lock()
		f.eof = true
		f.mu.Unlock()
	}
	return n, err
}

// Close reaps the process. After a full read it reports a failed decode,
// before that it kills ffmpeg and returns nil.
func (f *FFmpegStream) Close() error {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return nil
	}
	f.closed = true
	drained := f.eof
	f.mu.Unlock()

	if !drained {
		_ = f.Stop()
		_ = f.cmd.Wait()
		return nil
	}

	if err := f.cmd.Wait(); err != nil {
		f.mu.Lock()
		lastLine := f.lastLine
		f.mu.Unlock()

		return oops.
			In("ffmpeg").
			With("stderr", lastLine).
			Wrapf(err, "ffmpeg failed to decode audio")
	}

	return nil
}

func (f *FFmpegStream) Stop() error {
	if f.cmd.Process != nil {
		return f.cmd.Process.Kill()
	}
	return nil
}

func (f *FFmpegStream) logStderr() {
	scanner := bufio.NewScanner(f.stderr)
	for scanner.Scan() {
		line := scanner.Text()
		slog.Debug("ffmpeg", "stderr", line)

		f.mu.Lock()
		f.lastLine = line
		f.mu.Unlock()
	}
}
