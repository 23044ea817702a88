package session

import (
	"context"
	"testing"
	"time"

	"github.com/salonflow/salonflow-sessions/internal/model"
)

func booking(serviceID, staffID int64, date, at string) model.BookingFacts {
	names := map[int64]string{101: "Haircut", 102: "Coloring", 55: "Anna", 56: "Olga"}
	return model.BookingFacts{
		ServiceID:   serviceID,
		ServiceName: names[serviceID],
		StaffID:     staffID,
		StaffName:   names[staffID],
		Date:        date,
		Time:        at,
	}
}

func TestFavoritePromotionAtThreshold(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var p *model.Preferences
	var err error
	for i := 0; i < 3; i++ {
		p, err = s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-02", "10:00"))
		if err != nil {
			t.Fatalf("booking %d: %v", i, err)
		}
	}
	if p.FavoriteServiceID == nil || *p.FavoriteServiceID != 101 {
		t.Fatalf("favorite service not promoted at 3: %+v", p.FavoriteServiceID)
	}
	if p.FavoriteServiceName == nil || *p.FavoriteServiceName != "Haircut" {
		t.Fatalf("favorite service name: %+v", p.FavoriteServiceName)
	}
	if p.FavoriteStaffID == nil || *p.FavoriteStaffID != 55 {
		t.Fatalf("favorite staff not promoted: %+v", p.FavoriteStaffID)
	}
	if p.TotalBookings != 3 {
		t.Fatalf("total bookings: %d", p.TotalBookings)
	}
}

func TestNoPromotionBelowThreshold(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	var p *model.Preferences
	var err error
	for i := 0; i < 2; i++ {
		p, err = s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-02", "10:00"))
		if err != nil {
			t.Fatalf("booking: %v", err)
		}
	}
	if p.FavoriteServiceID != nil {
		t.Fatalf("favorite promoted below threshold")
	}
	// The pair threshold is lower: two shared bookings promote the
	// usual context already.
	if p.UsualContext == nil || *p.UsualContext != "Haircut with Anna" {
		t.Fatalf("usual context: %+v", p.UsualContext)
	}
}

func TestPreferredTimeBucketsAndTieBreak(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// One morning (11:59), one afternoon (16:59), one evening (17:00):
	// a three-way tie resolves to the first bucket in fixed order.
	if _, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-02", "11:59")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	if _, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 56, "2026-03-03", "16:59")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	p, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(102, 55, "2026-03-04", "17:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if p.TimeCounts[model.BucketMorning] != 1 || p.TimeCounts[model.BucketAfternoon] != 1 || p.TimeCounts[model.BucketEvening] != 1 {
		t.Fatalf("bucket boundaries: %+v", p.TimeCounts)
	}
	if p.PreferredTime == nil || *p.PreferredTime != model.BucketMorning {
		t.Fatalf("tie-break: %+v", p.PreferredTime)
	}

	// A second evening booking takes the lead.
	p, err = s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(102, 56, "2026-03-05", "19:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if p.PreferredTime == nil || *p.PreferredTime != model.BucketEvening {
		t.Fatalf("preferred time: %+v", p.PreferredTime)
	}
}

func TestWeekdayWeekendCounters(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// 2026-03-02 is a Monday, 2026-03-07 a Saturday.
	if _, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-02", "10:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	p, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-07", "10:00"))
	if err != nil {
		t.Fatalf("booking: %v", err)
	}
	if p.WeekdayCount != 1 || p.WeekendCount != 1 {
		t.Fatalf("day buckets: weekday=%d weekend=%d", p.WeekdayCount, p.WeekendCount)
	}
}

func TestGetPreferencesMissing(t *testing.T) {
	s, _ := newTestStore(t)
	p, err := s.GetPreferences(context.Background(), testPhone, testTenant)
	if err != nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p != nil {
		t.Fatalf("want nil for an identity without preferences")
	}
}

func TestSavePreferencesMerges(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-03-02", "10:00")); err != nil {
		t.Fatalf("booking: %v", err)
	}
	name := "Imported favorite"
	fav := int64(999)
	if _, err := s.SavePreferences(ctx, testPhone, testTenant, model.Preferences{
		FavoriteServiceID:   &fav,
		FavoriteServiceName: &name,
	}); err != nil {
		t.Fatalf("SavePreferences: %v", err)
	}

	p, err := s.GetPreferences(ctx, testPhone, testTenant)
	if err != nil || p == nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p.FavoriteServiceID == nil || *p.FavoriteServiceID != fav {
		t.Fatalf("partial field not applied: %+v", p.FavoriteServiceID)
	}
	if p.ServiceCounts[101] != 1 {
		t.Fatalf("existing counters lost: %+v", p.ServiceCounts)
	}
}

func TestSweepStalePreferences(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	for i := 0; i < 3; i++ {
		if _, err := s.RecordSuccessfulBooking(ctx, testPhone, testTenant, booking(101, 55, "2026-01-05", "10:00")); err != nil {
			t.Fatalf("booking: %v", err)
		}
	}

	// Fresh preferences are not swept.
	swept, err := s.SweepStalePreferences(ctx, testPhone, testTenant, 6*30*24*time.Hour)
	if err != nil || swept {
		t.Fatalf("fresh sweep: swept=%v err=%v", swept, err)
	}

	// Seven idle months later the counters reset, favorites survive.
	s.now = func() time.Time { return base.Add(7 * 30 * 24 * time.Hour) }
	swept, err = s.SweepStalePreferences(ctx, testPhone, testTenant, 6*30*24*time.Hour)
	if err != nil || !swept {
		t.Fatalf("stale sweep: swept=%v err=%v", swept, err)
	}

	p, err := s.GetPreferences(ctx, testPhone, testTenant)
	if err != nil || p == nil {
		t.Fatalf("GetPreferences: %v", err)
	}
	if p.TotalBookings != 0 || len(p.ServiceCounts) != 0 {
		t.Fatalf("counters not reset: %+v", p)
	}
	if p.FavoriteServiceID == nil || *p.FavoriteServiceID != 101 {
		t.Fatalf("favorite lost in sweep: %+v", p.FavoriteServiceID)
	}
	if p.UsualContext == nil {
		t.Fatalf("usual context lost in sweep")
	}
}
