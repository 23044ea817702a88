package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/salonflow/salonflow-sessions/internal/kv"
	"github.com/salonflow/salonflow-sessions/internal/model"
)

// Promotion thresholds. Counters compare with >=.
const (
	favoriteThreshold     = 3
	usualContextThreshold = 2
)

// RecordSuccessfulBooking folds one confirmed booking into the
// identity's preference accumulator: usage counters, time-of-day and
// weekday/weekend buckets, and the derived favorite/usual/preferred
// fields. Runs under optimistic concurrency so two concurrent bookings
// both count; the full-context cache is invalidated in the same
// transaction.
func (s *Store) RecordSuccessfulBooking(ctx context.Context, rawIdentity string, tenantID int64, facts model.BookingFacts) (*model.Preferences, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, prefsKey, _, fullKey := s.keys(tenantID, subject)

	var result *model.Preferences
	err = s.withOptimisticRetry(cctx, prefsKey, func(cur []byte, found bool) (*kv.Mutation, error) {
		p := s.decodeOrFreshPreferences(cur, found, prefsKey)
		s.accumulate(p, facts)
		result = p
		b, mErr := json.Marshal(p)
		if mErr != nil {
			return nil, mErr
		}
		return &kv.Mutation{Value: b, TTL: s.ttl.Preferences, Invalidate: []string{fullKey}}, nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return result, nil
}

// SavePreferences merges a partial record into the stored preferences:
// non-zero fields win, everything else is kept. Intended for imports
// and manual corrections, not the booking hot path.
func (s *Store) SavePreferences(ctx context.Context, rawIdentity string, tenantID int64, partial model.Preferences) (*model.Preferences, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, prefsKey, _, fullKey := s.keys(tenantID, subject)

	var result *model.Preferences
	err = s.withOptimisticRetry(cctx, prefsKey, func(cur []byte, found bool) (*kv.Mutation, error) {
		p := s.decodeOrFreshPreferences(cur, found, prefsKey)
		mergePreferences(p, partial)
		p.UpdatedAt = s.now()
		result = p
		b, mErr := json.Marshal(p)
		if mErr != nil {
			return nil, mErr
		}
		return &kv.Mutation{Value: b, TTL: s.ttl.Preferences, Invalidate: []string{fullKey}}, nil
	})
	if err != nil {
		return nil, storeErr(err)
	}
	return result, nil
}

// GetPreferences returns the stored preferences, or nil when the
// identity has none.
func (s *Store) GetPreferences(ctx context.Context, rawIdentity string, tenantID int64) (*model.Preferences, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return nil, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, prefsKey, _, _ := s.keys(tenantID, subject)
	b, err := s.kv.Get(cctx, prefsKey)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, storeErr(err)
	}
	var p model.Preferences
	if err := json.Unmarshal(b, &p); err != nil {
		s.log.Warn().Err(err).Str("key", prefsKey).Msg("undecodable preferences record treated as empty")
		return nil, nil
	}
	return &p, nil
}

// SweepStalePreferences resets the counters of an identity whose
// preferences have seen no booking within idle, while preserving the
// last-known favorite fields. Reports whether a sweep happened.
func (s *Store) SweepStalePreferences(ctx context.Context, rawIdentity string, tenantID int64, idle time.Duration) (bool, error) {
	subject, err := s.normalize(rawIdentity)
	if err != nil {
		return false, err
	}
	cctx, cancel := s.opCtx(ctx)
	defer cancel()

	_, _, prefsKey, _, fullKey := s.keys(tenantID, subject)

	swept := false
	err = s.withOptimisticRetry(cctx, prefsKey, func(cur []byte, found bool) (*kv.Mutation, error) {
		if !found {
			return nil, nil
		}
		var p model.Preferences
		if jsonErr := json.Unmarshal(cur, &p); jsonErr != nil {
			return nil, nil
		}
		if s.now().Sub(p.UpdatedAt) < idle {
			return nil, nil
		}
		p.ServiceCounts = nil
		p.StaffCounts = nil
		p.PairCounts = nil
		p.TimeCounts = nil
		p.WeekdayCount = 0
		p.WeekendCount = 0
		p.TotalBookings = 0
		p.UpdatedAt = s.now()
		swept = true
		b, mErr := json.Marshal(&p)
		if mErr != nil {
			return nil, mErr
		}
		return &kv.Mutation{Value: b, TTL: s.ttl.Preferences, Invalidate: []string{fullKey}}, nil
	})
	if err != nil {
		return false, storeErr(err)
	}
	return swept, nil
}

func (s *Store) decodeOrFreshPreferences(cur []byte, found bool, key string) *model.Preferences {
	p := &model.Preferences{}
	if found {
		if err := json.Unmarshal(cur, p); err != nil {
			s.log.Warn().Err(err).Str("key", key).Msg("undecodable preferences record, starting fresh")
			p = &model.Preferences{}
		}
	}
	return p
}

func (s *Store) accumulate(p *model.Preferences, facts model.BookingFacts) {
	if p.ServiceCounts == nil {
		p.ServiceCounts = make(map[int64]int)
	}
	if p.StaffCounts == nil {
		p.StaffCounts = make(map[int64]int)
	}
	if p.PairCounts == nil {
		p.PairCounts = make(map[string]int)
	}
	if p.TimeCounts == nil {
		p.TimeCounts = make(map[model.TimeBucket]int)
	}
	if p.ServiceNames == nil {
		p.ServiceNames = make(map[int64]string)
	}
	if p.StaffNames == nil {
		p.StaffNames = make(map[int64]string)
	}

	p.ServiceCounts[facts.ServiceID]++
	p.StaffCounts[facts.StaffID]++
	pair := pairKey(facts.ServiceID, facts.StaffID)
	p.PairCounts[pair]++
	p.ServiceNames[facts.ServiceID] = facts.ServiceName
	p.StaffNames[facts.StaffID] = facts.StaffName

	if bucket, ok := timeBucketOf(facts.Time); ok {
		p.TimeCounts[bucket]++
	}
	if weekend, ok := isWeekend(facts.Date); ok {
		if weekend {
			p.WeekendCount++
		} else {
			p.WeekdayCount++
		}
	}

	p.LastServiceID = facts.ServiceID
	p.LastStaffID = facts.StaffID
	p.LastDate = facts.Date
	p.LastTime = facts.Time
	p.TotalBookings++

	// Promotions.
	if p.ServiceCounts[facts.ServiceID] >= favoriteThreshold {
		id := facts.ServiceID
		name := facts.ServiceName
		p.FavoriteServiceID = &id
		p.FavoriteServiceName = &name
	}
	if p.StaffCounts[facts.StaffID] >= favoriteThreshold {
		id := facts.StaffID
		name := facts.StaffName
		p.FavoriteStaffID = &id
		p.FavoriteStaffName = &name
	}
	if p.PairCounts[pair] >= usualContextThreshold {
		usual := fmt.Sprintf("%s with %s", facts.ServiceName, facts.StaffName)
		p.UsualContext = &usual
	}
	if bucket, ok := preferredBucket(p.TimeCounts); ok {
		p.PreferredTime = &bucket
	}

	p.UpdatedAt = s.now()
}

func pairKey(serviceID, staffID int64) string {
	return fmt.Sprintf("%d|%d", serviceID, staffID)
}

// timeBucketOf classifies an HH:MM string: before 12 is morning,
// before 17 afternoon, later evening.
func timeBucketOf(hhmm string) (model.TimeBucket, bool) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return "", false
	}
	switch h := t.Hour(); {
	case h < 12:
		return model.BucketMorning, true
	case h < 17:
		return model.BucketAfternoon, true
	default:
		return model.BucketEvening, true
	}
}

func isWeekend(date string) (weekend, ok bool) {
	d, err := time.Parse("2006-01-02", date)
	if err != nil {
		return false, false
	}
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday, true
}

// preferredBucket returns the bucket holding the highest count. Ties
// resolve by the fixed morning → afternoon → evening order, so the
// result is deterministic.
func preferredBucket(counts map[model.TimeBucket]int) (model.TimeBucket, bool) {
	order := []model.TimeBucket{model.BucketMorning, model.BucketAfternoon, model.BucketEvening}
	best, bestCount := model.TimeBucket(""), 0
	for _, b := range order {
		if counts[b] > bestCount {
			best, bestCount = b, counts[b]
		}
	}
	return best, bestCount > 0
}

// mergePreferences applies "partial wins if present" semantics.
func mergePreferences(p *model.Preferences, partial model.Preferences) {
	if partial.ServiceCounts != nil {
		p.ServiceCounts = partial.ServiceCounts
	}
	if partial.StaffCounts != nil {
		p.StaffCounts = partial.StaffCounts
	}
	if partial.PairCounts != nil {
		p.PairCounts = partial.PairCounts
	}
	if partial.TimeCounts != nil {
		p.TimeCounts = partial.TimeCounts
	}
	if partial.ServiceNames != nil {
		p.ServiceNames = partial.ServiceNames
	}
	if partial.StaffNames != nil {
		p.StaffNames = partial.StaffNames
	}
	if partial.WeekdayCount != 0 {
		p.WeekdayCount = partial.WeekdayCount
	}
	if partial.WeekendCount != 0 {
		p.WeekendCount = partial.WeekendCount
	}
	if partial.LastServiceID != 0 {
		p.LastServiceID = partial.LastServiceID
	}
	if partial.LastStaffID != 0 {
		p.LastStaffID = partial.LastStaffID
	}
	if partial.LastDate != "" {
		p.LastDate = partial.LastDate
	}
	if partial.LastTime != "" {
		p.LastTime = partial.LastTime
	}
	if partial.FavoriteServiceID != nil {
		p.FavoriteServiceID = partial.FavoriteServiceID
	}
	if partial.FavoriteServiceName != nil {
		p.FavoriteServiceName = partial.FavoriteServiceName
	}
	if partial.FavoriteStaffID != nil {
		p.FavoriteStaffID = partial.FavoriteStaffID
	}
	if partial.FavoriteStaffName != nil {
		p.FavoriteStaffName = partial.FavoriteStaffName
	}
	if partial.UsualContext != nil {
		p.UsualContext = partial.UsualContext
	}
	if partial.PreferredTime != nil {
		p.PreferredTime = partial.PreferredTime
	}
	if partial.TotalBookings != 0 {
		p.TotalBookings = partial.TotalBookings
	}
}
