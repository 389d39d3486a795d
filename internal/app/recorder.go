package app

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ayusman/holohud/internal/interaction"
	"github.com/ayusman/holohud/internal/store"
)

// RecordQueueSize bounds the transitions waiting to be written.
const RecordQueueSize = 64

// recorder writes session transitions to SQLite off the loop goroutine.
// A nil recorder ignores everything.
type recorder struct {
	sessions *store.SessionRepository
	events   *store.EventRepository
	log      logrus.FieldLogger

	session store.Session
	queue   chan store.Event
	done    chan struct{}
}

func newRecorder(st *store.Store, log logrus.FieldLogger) *recorder {
	return &recorder{
		sessions: st.Sessions(),
		events:   st.Events(),
		log:      log.WithField("component", "recorder"),
		queue:    make(chan store.Event, RecordQueueSize),
		done:     make(chan struct{}),
	}
}

func (r *recorder) start(screen interaction.Size, at time.Time) error {
	r.session = store.Session{
		ScreenWidth:  screen.Width,
		ScreenHeight: screen.Height,
		StartedAt:    at,
	}
	if err := r.sessions.Start(&r.session); err != nil {
		return err
	}
	r.log.WithField("session", r.session.ID).Info("session started")

	go r.run()
	return nil
}

func (r *recorder) run() {
	defer close(r.done)
	for e := range r.queue {
		if err := r.events.Add(&e); err != nil {
			r.log.WithError(err).WithField("kind", e.Kind).Warn("failed to record event")
		}
	}
}

// record queues a transition without blocking. A full queue drops it.
func (r *recorder) record(kind store.EventKind, value string, at time.Time) {
	if r == nil {
		return
	}
	e := store.Event{SessionID: r.session.ID, Kind: kind, Value: value, At: at}
	select {
	case r.queue <- e:
	default:
		r.log.WithFields(logrus.Fields{"kind": kind, "value": value}).Warn("record queue full, dropping event")
	}
}

// stop writes what is already queued, then closes the session.
func (r *recorder) stop(at time.Time) {
	close(r.queue)
	<-r.done
	if err := r.sessions.End(r.session.ID, at); err != nil {
		r.log.WithError(err).Warn("failed to end session")
		return
	}
	r.log.WithField("session", r.session.ID).Info("session ended")
}

func (r *recorder) sessionID() string {
	return r.session.ID
}
