package roster

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"pickup/internal/queue"
)

// ErrToggleInFlight means a toggle for the same student is still running.
var ErrToggleInFlight = errors.New("toggle already in flight for student")

// ErrInvalid marks rejected input; callers map it to a 400.
var ErrInvalid = errors.New("invalid student")

// Store is the persistence surface the service needs.
type Store interface {
	ListStudents(ctx context.Context) ([]Student, error)
	GetStudent(ctx context.Context, id string) (Student, error)
	InsertStudent(ctx context.Context, s Student) (Student, error)
	UpdateStudent(ctx context.Context, id string, p StudentPatch) (Student, error)
	DeleteStudent(ctx context.Context, id string) error
	SetStatus(ctx context.Context, id string, kind StatusKind, value bool) error
	ListClassSlots(ctx context.Context) (map[string]ClassSlot, error)
	ReplaceClassSlots(ctx context.Context, slots map[string]ClassSlot) error
}

// Service owns the roster. Postgres is authoritative; every mutation also
// enqueues a best-effort sync job for the Notion/Firestore mirrors, and a
// publish failure never fails the request.
//
// Completion flags are not date-scoped: a toggled status stays until the next
// toggle. There is deliberately no midnight reset.
type Service struct {
	store Store
	queue queue.Queue
	log   *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a service. The queue may be nil when sync is disabled.
func NewService(store Store, q queue.Queue, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store:    store,
		queue:    q,
		log:      log,
		inFlight: make(map[string]struct{}),
	}
}

// Roster lists students under the given filter, sorted by arrival time.
func (s *Service) Roster(ctx context.Context, f Filter) ([]Student, error) {
	all, err := s.store.ListStudents(ctx)
	if err != nil {
		return nil, err
	}
	visible := f.Apply(all)
	SortByArrival(visible)
	return visible, nil
}

// AllStudents lists the unfiltered roster, withdrawn students included.
func (s *Service) AllStudents(ctx context.Context) ([]Student, error) {
	return s.store.ListStudents(ctx)
}

// AddStudent creates a student with defaulted fields and a canonical id.
func (s *Service) AddStudent(ctx context.Context, st Student) (Student, error) {
	if strings.TrimSpace(st.Name) == "" {
		return Student{}, fmt.Errorf("%w: name required", ErrInvalid)
	}
	if st.IsActive == nil {
		active := true
		st.IsActive = &active
	}
	st.Normalize()
	created, err := s.store.InsertStudent(ctx, st)
	if err != nil {
		return Student{}, err
	}
	s.enqueue(ctx, SyncJob{Kind: SyncUpsert, StudentID: created.ID})
	return created, nil
}

// UpdateStudent applies a partial merge; withdrawal and reactivation are the
// same operation with only isActive set.
func (s *Service) UpdateStudent(ctx context.Context, id string, p StudentPatch) (Student, error) {
	updated, err := s.store.UpdateStudent(ctx, id, p)
	if err != nil {
		return Student{}, err
	}
	s.enqueue(ctx, SyncJob{Kind: SyncUpsert, StudentID: id})
	return updated, nil
}

// DeleteStudent removes the student everywhere.
func (s *Service) DeleteStudent(ctx context.Context, id string) error {
	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteStudent(ctx, id); err != nil {
		return err
	}
	s.enqueue(ctx, SyncJob{Kind: SyncDelete, StudentID: id, NotionPageID: st.NotionPageID})
	return nil
}

// Toggle flips one completion flag. A second toggle for the same student
// while one is outstanding is rejected; toggles for different students run
// freely in parallel.
func (s *Service) Toggle(ctx context.Context, id string, kind StatusKind) (Student, error) {
	if !s.begin(id) {
		return Student{}, ErrToggleInFlight
	}
	defer s.end(id)

	st, err := s.store.GetStudent(ctx, id)
	if err != nil {
		return Student{}, err
	}
	var next bool
	switch kind {
	case KindDeparture:
		next = !st.DepartureStatus
		st.DepartureStatus = next
	default:
		next = !st.ArrivalStatus
		st.ArrivalStatus = next
	}
	if err := s.store.SetStatus(ctx, id, kind, next); err != nil {
		return Student{}, err
	}
	s.enqueue(ctx, SyncJob{Kind: SyncStatus, StudentID: id})
	return st, nil
}

// ClassInfo returns the class-slot map, seeded defaults when never edited.
func (s *Service) ClassInfo(ctx context.Context) (map[string]ClassSlot, error) {
	slots, err := s.store.ListClassSlots(ctx)
	if err != nil {
		return nil, err
	}
	if len(slots) == 0 {
		return DefaultClassSlots(), nil
	}
	return slots, nil
}

// UpdateClassInfo overwrites the class-slot map wholesale.
func (s *Service) UpdateClassInfo(ctx context.Context, slots map[string]ClassSlot) error {
	if len(slots) == 0 {
		return fmt.Errorf("%w: empty class info", ErrInvalid)
	}
	for slot := range slots {
		if arrivalMinutes(slot) == noTimeMinutes {
			return fmt.Errorf("%w: bad slot %q", ErrInvalid, slot)
		}
	}
	if err := s.store.ReplaceClassSlots(ctx, slots); err != nil {
		return err
	}
	s.enqueue(ctx, SyncJob{Kind: SyncClassInfo})
	return nil
}

func (s *Service) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) end(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

func (s *Service) enqueue(ctx context.Context, job SyncJob) {
	if s.queue == nil {
		return
	}
	msg, err := job.Message()
	if err != nil {
		s.log.Warn("encode sync job failed", zap.String("kind", job.Kind), zap.Error(err))
		return
	}
	if err := s.queue.Publish(ctx, msg); err != nil {
		s.log.Warn("enqueue sync job failed",
			zap.String("kind", job.Kind),
			zap.String("student", job.StudentID),
			zap.Error(err))
	}
}
