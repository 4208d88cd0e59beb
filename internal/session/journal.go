package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/readmeplay/internal/queue"
	"github.com/roach88/readmeplay/internal/store"
)

// Journal records sessions and deliveries. *store.Store satisfies it.
type Journal interface {
	WriteSession(ctx context.Context, sess store.Session) (store.Session, error)
	WriteDelivery(ctx context.Context, d store.Delivery) (store.Delivery, error)
}

const journalWriteTimeout = 5 * time.Second

// recorder writes deliveries off the loop goroutine so a slow disk never
// delays a flush.
type recorder struct {
	journal Journal
	logger  *slog.Logger
	pending *queue.Queue[store.Delivery]
	done    chan struct{}
}

func newRecorder(j Journal, logger *slog.Logger) *recorder {
	r := &recorder{
		journal: j,
		logger:  logger,
		pending: queue.New[store.Delivery](),
		done:    make(chan struct{}),
	}
	go r.run()
	return r
}

func (r *recorder) record(d store.Delivery) {
	if !r.pending.Enqueue(d) {
		r.logger.Warn("journal closed, delivery not recorded", "kind", d.Kind)
	}
}

func (r *recorder) run() {
	defer close(r.done)
	for {
		if d, ok := r.pending.TryDequeue(); ok {
			r.write(d)
			continue
		}
		if r.pending.Closed() {
			return
		}
		<-r.pending.Wait()
	}
}

func (r *recorder) write(d store.Delivery) {
	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if _, err := r.journal.WriteDelivery(ctx, d); err != nil {
		r.logger.Error("journal write failed", "kind", d.Kind, "error", err)
	}
}

// close stops accepting deliveries and waits for queued ones to be written.
func (r *recorder) close() {
	r.pending.Close()
	<-r.done
}
