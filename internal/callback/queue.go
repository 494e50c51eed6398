package callback

import (
	"time"

	"github.com/eapache/channels"
	"github.com/rs/zerolog"
)

// drainInterval is how often the queue dedups and dispatches whatever
// arrived since the last pass (spec §4.9: the non-blocking enqueue path
// gets drained on a periodic timer rather than a per-item goroutine, which
// would fight the sync lock directly).
const drainInterval = 2 * time.Second

// event is one callback's worth of work, queued when the sync lock was
// busy at push time.
type event struct {
	spNo   string
	status int
}

// Queue is a non-blocking, unbounded landing pad for approval events whose
// immediate dispatch lost the sync lock race. It is adapted from the
// eapache/channels.InfiniteChannel pattern: In() never blocks the HTTP
// handler, and a background drain loop is the only reader.
type Queue struct {
	ch       *channels.InfiniteChannel
	dispatch func(spNo string, status int)
	log      zerolog.Logger
	stop     chan struct{}
	done     chan struct{}
}

// NewQueue starts the background drain loop immediately. dispatch is
// called once per deduped event, off the HTTP goroutine.
func NewQueue(dispatch func(spNo string, status int), log zerolog.Logger) *Queue {
	q := &Queue{
		ch:       channels.NewInfiniteChannel(),
		dispatch: dispatch,
		log:      log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue pushes an event without blocking the caller.
func (q *Queue) Enqueue(spNo string, status int) {
	q.ch.In() <- event{spNo: spNo, status: status}
}

// Close stops the drain loop after finishing any in-flight dispatch, and
// closes the underlying channel.
func (q *Queue) Close() {
	close(q.stop)
	<-q.done
	q.ch.Close()
}

func (q *Queue) run() {
	defer close(q.done)
	ticker := time.NewTicker(drainInterval)
	defer ticker.Stop()
	out := q.ch.Out()

	for {
		select {
		case <-q.stop:
			return
		case <-ticker.C:
			q.drain(out)
		}
	}
}

// drain collects every event currently buffered, keeps only the
// latest-arriving status per approval number (P7: dedup on drain), and
// dispatches each survivor.
func (q *Queue) drain(out <-chan interface{}) {
	latest := map[string]int{}
	order := []string{}
	for n := q.ch.Len(); n > 0; n-- {
		v, ok := <-out
		if !ok {
			break
		}
		ev := v.(event)
		if _, seen := latest[ev.spNo]; !seen {
			order = append(order, ev.spNo)
		}
		latest[ev.spNo] = ev.status
	}
	for _, spNo := range order {
		q.dispatch(spNo, latest[spNo])
	}
}
