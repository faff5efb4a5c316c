// Package countsync pushes live room sizes to the persisted room records.
//
// Writes are best effort: each scheduled update carries an increasing
// sequence number and the store keeps only the highest sequence it has seen
// per room, so an update that lands late cannot overwrite a newer count.
// Sequences follow the wall clock in microseconds, so a restarted process
// continues above the values its predecessor wrote. Failed writes are logged
// and dropped.
package countsync

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/studyroom/internal/domain"
	"github.com/dkeye/studyroom/internal/repo"
)

// Result of a single count write.
type Result string

const (
	Applied  Result = "applied"
	Stale    Result = "stale"
	NotFound Result = "not_found"
	Failed   Result = "failed"
)

// CountStore is the slice of the room repo the syncer writes to.
type CountStore interface {
	SetParticipantCount(ctx context.Context, id domain.RoomID, count int, seq uint64) (bool, error)
}

type Options struct {
	Workers int
	Timeout time.Duration
	// OnResult is called after every write attempt.
	OnResult func(Result)
	// Now seeds sequence numbers; time.Now when nil.
	Now func() time.Time
}

type update struct {
	count int
	seq   uint64
}

type Syncer struct {
	store    CountStore
	workers  int
	timeout  time.Duration
	onResult func(Result)
	now      func() time.Time

	seq atomic.Uint64

	mu      sync.Mutex
	pending map[domain.RoomID]update
	ready   []domain.RoomID
	wake    chan struct{}
}

func New(store CountStore, opts Options) *Syncer {
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Syncer{
		store:    store,
		workers:  opts.Workers,
		timeout:  opts.Timeout,
		onResult: opts.OnResult,
		now:      opts.Now,
		pending:  make(map[domain.RoomID]update),
		wake:     make(chan struct{}, 1),
	}
}

// Schedule records count as the newest size of room id and returns the
// sequence number assigned to it. A pending, not yet written update for the
// same room is replaced.
func (s *Syncer) Schedule(id domain.RoomID, count int) uint64 {
	seq := s.nextSeq()

	s.mu.Lock()
	if prev, ok := s.pending[id]; ok {
		if seq > prev.seq {
			s.pending[id] = update{count: count, seq: seq}
		}
	} else {
		s.pending[id] = update{count: count, seq: seq}
		s.ready = append(s.ready, id)
	}
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return seq
}

// nextSeq returns the current time in microseconds, or one more than the
// last sequence when the clock has not moved past it. Microseconds keep the
// value exact in the redis Lua script, which compares doubles.
func (s *Syncer) nextSeq() uint64 {
	for {
		prev := s.seq.Load()
		next := uint64(s.now().UnixMicro())
		if next <= prev {
			next = prev + 1
		}
		if s.seq.CompareAndSwap(prev, next) {
			return next
		}
	}
}

// Pending reports how many rooms have an unwritten update.
func (s *Syncer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func (s *Syncer) next() (domain.RoomID, update, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.ready) == 0 {
		return "", update{}, false
	}
	id := s.ready[0]
	s.ready = s.ready[1:]
	u := s.pending[id]
	delete(s.pending, id)
	return id, u, true
}

// Run writes scheduled updates until ctx is done.
func (s *Syncer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			s.work(ctx)
			return nil
		})
	}
	return g.Wait()
}

func (s *Syncer) work(ctx context.Context) {
	for {
		for {
			id, u, ok := s.next()
			if !ok {
				break
			}
			s.write(ctx, id, u)
		}
		select {
		case <-ctx.Done():
			return
		case <-s.wake:
		}
	}
}

// Flush writes everything still pending, using ctx for the writes.
// Used on shutdown after Run has returned.
func (s *Syncer) Flush(ctx context.Context) {
	for {
		id, u, ok := s.next()
		if !ok {
			return
		}
		s.write(ctx, id, u)
	}
}

func (s *Syncer) write(parent context.Context, id domain.RoomID, u update) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	applied, err := s.store.SetParticipantCount(ctx, id, u.count, u.seq)
	var res Result
	switch {
	case errors.Is(err, repo.ErrRoomNotFound):
		res = NotFound
		log.Debug().Str("module", "app.countsync").Str("room", string(id)).Msg("no persisted room for count")
	case err != nil:
		res = Failed
		log.Error().Err(err).Str("module", "app.countsync").Str("room", string(id)).
			Int("count", u.count).Uint64("seq", u.seq).Msg("participant count sync failed")
	case !applied:
		res = Stale
		log.Debug().Str("module", "app.countsync").Str("room", string(id)).Uint64("seq", u.seq).Msg("stale count dropped")
	default:
		res = Applied
	}
	if s.onResult != nil {
		s.onResult(res)
	}
}
