package journal

import (
	"context"
	"log/slog"

	"github.com/samber/do"
)

const bufferSize = 64

// Queue buffers entries so actuation never waits on the database
type Queue struct {
	journal *Service
	queue   chan Entry
}

func NewQueue(di *do.Injector) (*Queue, error) {
	return newQueue(do.MustInvoke[*Service](di)), nil
}

func newQueue(journal *Service) *Queue {
	return &Queue{
		journal: journal,
		queue:   make(chan Entry, bufferSize),
	}
}

func (q *Queue) Add(entry Entry) {
	if !q.journal.Enabled() {
		return
	}

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = q.journal.now().UTC()
	}

	select {
	case q.queue <- entry:
	default:
		slog.Warn("Command journal queue is full, dropping entry",
			slog.String("message", entry.Message),
		)
	}
}

// Run drains the queue into the journal until ctx is cancelled, then flushes what is left
func (q *Queue) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			q.flush()
			return
		case entry := <-q.queue:
			q.record(context.WithoutCancel(ctx), entry)
		}
	}
}

func (q *Queue) flush() {
	for {
		select {
		case entry := <-q.queue:
			q.record(context.Background(), entry)
		default:
			return
		}
	}
}

func (q *Queue) record(ctx context.Context, entry Entry) {
	if err := q.journal.Record(ctx, entry); err != nil {
		slog.Error("Failed to record command", slog.Any("error", err))
	}
}
