package notify

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultToastDuration is how long a sub-urgent notice stays on screen.
const DefaultToastDuration = 5 * time.Second

// Notice is a transient UI toast, distinct from a persisted Notification.
type Notice struct {
	ID       string    `json:"id"`
	Message  string    `json:"message"`
	Priority Priority  `json:"priority"`
	PushedAt time.Time `json:"pushed_at"`
}

// Queue manages active toasts. Sub-urgent notices expire on a timer armed at
// push time; urgent notices stay until dismissed. Each pending expiry is a
// cancellable timer keyed by notice id, so Dismiss cancels it
// deterministically instead of racing a detached timer.
type Queue struct {
	duration time.Duration

	// OnExpire, when set, is called after an expiry timer removes a notice.
	// Set before the first Push.
	OnExpire func(Notice)

	mu     sync.Mutex
	active []Notice
	timers map[string]*time.Timer
}

// NewQueue creates a Queue with the given auto-expiry duration for
// sub-urgent notices. A non-positive duration falls back to the default.
func NewQueue(duration time.Duration) *Queue {
	if duration <= 0 {
		duration = DefaultToastDuration
	}
	return &Queue{
		duration: duration,
		timers:   make(map[string]*time.Timer),
	}
}

// Push adds a notice to the active queue, assigning its id and timestamp,
// and arms its expiry timer unless it is urgent. The assigned id is
// returned.
func (q *Queue) Push(message string, priority Priority) string {
	n := Notice{
		ID:       uuid.NewString(),
		Message:  message,
		Priority: priority,
		PushedAt: time.Now(),
	}

	q.mu.Lock()
	q.active = append(q.active, n)
	if priority != PriorityUrgent {
		id := n.ID
		q.timers[id] = time.AfterFunc(q.duration, func() { q.expire(id) })
	}
	q.mu.Unlock()
	return n.ID
}

// Dismiss removes a notice immediately regardless of priority and cancels
// any pending expiry. Dismissing an unknown id is a no-op.
func (q *Queue) Dismiss(id string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(id)
}

// Active returns a snapshot of the current notices in push order.
func (q *Queue) Active() []Notice {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Notice, len(q.active))
	copy(out, q.active)
	return out
}

// Close cancels all pending expiry timers.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for id, t := range q.timers {
		t.Stop()
		delete(q.timers, id)
	}
}

func (q *Queue) expire(id string) {
	q.mu.Lock()
	n, removed := q.removeLocked(id)
	q.mu.Unlock()
	if removed && q.OnExpire != nil {
		q.OnExpire(n)
	}
}

// removeLocked must be called with the lock held.
func (q *Queue) removeLocked(id string) (Notice, bool) {
	if t, ok := q.timers[id]; ok {
		t.Stop()
		delete(q.timers, id)
	}
	for i, n := range q.active {
		if n.ID == id {
			q.active = append(q.active[:i], q.active[i+1:]...)
			return n, true
		}
	}
	return Notice{}, false
}
