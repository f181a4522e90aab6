package analytics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/frogody/floatr-app-sub000/internal/domain/errs"
	"github.com/frogody/floatr-app-sub000/internal/domain/model"
)

const (
	EventDiscoverySearch = "discovery_search"
	EventSwipeRecorded   = "swipe_recorded"
	EventUnmatch         = "unmatch"
	EventBlock           = "block"
)

var ErrValidation = errs.Validation("name", "event name is required")

type Store interface {
	InsertEvents(ctx context.Context, events []model.Event) error
}

// Service writes audit events. Callers treat it as a side channel: Record
// logs its own failures and the returned error is informational.
type Service struct {
	store Store
	log   *zap.Logger
	now   func() time.Time
}

func NewService(store Store, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		store: store,
		log:   log,
		now:   time.Now,
	}
}

func (s *Service) Record(ctx context.Context, userID int64, name string, props map[string]any) error {
	if s == nil || s.store == nil {
		return nil
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrValidation
	}

	event := model.Event{
		Name:       name,
		OccurredAt: s.now().UTC(),
		Payload:    cloneProps(props),
	}
	if userID > 0 {
		uid := userID
		event.UserID = &uid
	}

	if err := s.store.InsertEvents(ctx, []model.Event{event}); err != nil {
		s.log.Warn("audit event not recorded", zap.String("event", name), zap.Int64("user_id", userID), zap.Error(err))
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func cloneProps(props map[string]any) map[string]any {
	if len(props) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(props))
	for key, value := range props {
		out[key] = value
	}
	return out
}
