package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/newsroom-planning/internal/model"
	"github.com/nhle/newsroom-planning/internal/notify"
	"github.com/nhle/newsroom-planning/internal/store"
)

// ExpiredCounts reports one sweep's results.
type ExpiredCounts struct {
	Events   int
	Planning int
}

// FlagExpired runs the expiry sweep: events whose schedule ended more
// than the configured expiry window ago are flagged expired, together
// with their linked planning items, and then standalone planning items
// past their own schedule are flagged in a second independent phase.
// Locked items are skipped. A zero expiry window disables the sweep.
func (s *Service) FlagExpired(ctx context.Context) (ExpiredCounts, error) {
	var counts ExpiredCounts
	if s.cfg.ExpiryMinutes <= 0 {
		return counts, nil
	}

	now := s.now().UTC()
	threshold := now.Add(-time.Duration(s.cfg.ExpiryMinutes) * time.Minute)

	// The phases are independent: a failure in one is logged and does
	// not stop the other.
	var phaseErrs []error

	expiredEvents, err := s.expireEvents(ctx, threshold, now)
	if err != nil {
		s.log.WithError(err).Error("event expiry phase failed")
		phaseErrs = append(phaseErrs, err)
	}
	counts.Events = expiredEvents.events
	counts.Planning = expiredEvents.planning

	expiredPlanning, err := s.expirePlanning(ctx, threshold, now)
	if err != nil {
		s.log.WithError(err).Error("planning expiry phase failed")
		phaseErrs = append(phaseErrs, err)
	}
	counts.Planning += expiredPlanning

	if counts.Events > 0 || counts.Planning > 0 {
		s.pub.Publish(ctx, notify.ItemsExpired, map[string]any{
			"events":   counts.Events,
			"planning": counts.Planning,
		})
	}
	return counts, errors.Join(phaseErrs...)
}

type eventSweepResult struct {
	events   int
	planning int
}

func (s *Service) expireEvents(ctx context.Context, threshold, now time.Time) (eventSweepResult, error) {
	var result eventSweepResult

	// Snapshot the candidate set first so flagging does not shift the
	// pages underneath the walk.
	candidates, err := s.collectExpiredEvents(ctx, threshold)
	if err != nil {
		return result, err
	}

	for _, ev := range candidates {
		if ev.LockUser != "" {
			s.log.WithField("event", ev.ID).Debug("skipping locked event in expiry sweep")
			continue
		}

		ev.Expired = true
		ev.VersionCreated = &now
		if err := s.store.UpdateEvent(ctx, ev); err != nil {
			s.log.WithFields(logrus.Fields{"event": ev.ID, "error": err}).
				Error("flagging expired event failed")
			continue
		}
		result.events++

		linked, err := s.store.GetPlanningsForEvent(ctx, ev.ID)
		if err != nil {
			s.log.WithFields(logrus.Fields{"event": ev.ID, "error": err}).
				Error("loading linked planning items failed")
			continue
		}
		for _, item := range linked {
			if item.Expired || item.LockUser != "" {
				continue
			}
			item.Expired = true
			item.VersionCreated = &now
			if err := s.store.UpdatePlanning(ctx, item); err != nil {
				s.log.WithFields(logrus.Fields{"planning": item.ID, "error": err}).
					Error("flagging expired planning item failed")
				continue
			}
			result.planning++
		}
	}

	return result, nil
}

func (s *Service) collectExpiredEvents(ctx context.Context, threshold time.Time) ([]model.Event, error) {
	var out []model.Event
	pageSize := s.pageSize()

	offset := 0
	for {
		page, err := s.store.GetEvents(ctx, store.EventFilter{
			EndBefore:  &threshold,
			NotExpired: true,
			SortBy:     "dates.end",
			Limit:      pageSize,
			Offset:     offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		offset += pageSize
	}
}

// expirePlanning flags standalone planning items whose own schedule has
// fully passed. Items linked to a primary event are left to the event
// phase.
func (s *Service) expirePlanning(ctx context.Context, threshold, now time.Time) (int, error) {
	candidates, err := s.collectExpiredPlanning(ctx, threshold)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, item := range candidates {
		if item.LockUser != "" {
			s.log.WithField("planning", item.ID).Debug("skipping locked planning item in expiry sweep")
			continue
		}
		item.Expired = true
		item.VersionCreated = &now
		if err := s.store.UpdatePlanning(ctx, item); err != nil {
			s.log.WithFields(logrus.Fields{"planning": item.ID, "error": err}).
				Error("flagging expired planning item failed")
			continue
		}
		expired++
	}
	return expired, nil
}

func (s *Service) collectExpiredPlanning(ctx context.Context, threshold time.Time) ([]model.Planning, error) {
	var out []model.Planning
	pageSize := s.pageSize()

	offset := 0
	for {
		page, err := s.store.GetPlannings(ctx, store.PlanningFilter{
			ScheduleBefore:       &threshold,
			ExcludePrimaryLinked: true,
			NotExpired:           true,
			Limit:                pageSize,
			Offset:               offset,
		})
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < pageSize {
			return out, nil
		}
		offset += pageSize
	}
}

func (s *Service) pageSize() int {
	if s.cfg.SweepPageSize > 0 {
		return s.cfg.SweepPageSize
	}
	return 200
}
