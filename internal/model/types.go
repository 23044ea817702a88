package model

import "time"

// DialogState tracks whether a conversation has progressed past its
// opening turn.
type DialogState string

const (
	DialogStateNew    DialogState = "new"
	DialogStateActive DialogState = "active"
)

// Sender identifies who wrote a message-log entry.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// Selection is the in-progress service/staff/date/time choice inside
// one dialog. Each field is independently nullable.
type Selection struct {
	Service *string `json:"service,omitempty"`
	Staff   *string `json:"staff,omitempty"`
	Date    *string `json:"date,omitempty"`
	Time    *string `json:"time,omitempty"`
}

// IsEmpty reports whether no selection field is set.
func (s Selection) IsEmpty() bool {
	return s.Service == nil && s.Staff == nil && s.Date == nil && s.Time == nil
}

// DialogContext is the live short-horizon state of one conversation.
type DialogContext struct {
	Selection             Selection              `json:"selection"`
	PendingAction         map[string]interface{} `json:"pendingAction,omitempty"`
	ClientName            *string                `json:"clientName,omitempty"`
	State                 DialogState            `json:"state"`
	AskedForTimeSelection bool                   `json:"askedForTimeSelection"`
	AskedForTimeAt        *time.Time             `json:"askedForTimeAt,omitempty"`
	ShownSlotsAt          *time.Time             `json:"shownSlotsAt,omitempty"`
	LastUpdated           time.Time              `json:"lastUpdated"`
}

// SelectionUpdate carries per-field updates for a dialog selection.
// A zero Opt leaves the stored field untouched; an explicit null clears
// it. This tri-state is the core merge contract of the dialog writer.
type SelectionUpdate struct {
	Service Opt[string] `json:"service,omitzero"`
	Staff   Opt[string] `json:"staff,omitzero"`
	Date    Opt[string] `json:"date,omitzero"`
	Time    Opt[string] `json:"time,omitzero"`
}

// DialogUpdate is a partial update applied to a DialogContext.
type DialogUpdate struct {
	Selection             *SelectionUpdate            `json:"selection,omitempty"`
	PendingAction         Opt[map[string]interface{}] `json:"pendingAction,omitzero"`
	ClientName            Opt[string]                 `json:"clientName,omitzero"`
	State                 Opt[DialogState]            `json:"state,omitzero"`
	AskedForTimeSelection Opt[bool]                   `json:"askedForTimeSelection,omitzero"`
	ShownSlots            Opt[bool]                   `json:"shownSlots,omitzero"`
}

// ClientRecord mirrors durable customer data owned by the business
// backend. The session store only caches it and never writes back.
type ClientRecord struct {
	ClientID          int64   `json:"clientId"`
	Name              string  `json:"name"`
	Phone             string  `json:"phone"`
	VisitCount        int     `json:"visitCount"`
	FavoriteServiceID *int64  `json:"favoriteServiceId,omitempty"`
	FavoriteStaffID   *int64  `json:"favoriteStaffId,omitempty"`
	Comment           *string `json:"comment,omitempty"`
}

// MessageLogEntry is one exchanged message.
type MessageLogEntry struct {
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// BookingFacts is what the booking backend reports after a confirmed
// booking; it is the only input to preference accumulation.
type BookingFacts struct {
	ServiceID   int64  `json:"serviceId"`
	ServiceName string `json:"serviceName"`
	StaffID     int64  `json:"staffId"`
	StaffName   string `json:"staffName"`
	Date        string `json:"date"` // YYYY-MM-DD
	Time        string `json:"time"` // HH:MM
}

// TimeBucket is a coarse time-of-day class used by preference counters.
type TimeBucket string

const (
	BucketMorning   TimeBucket = "morning"
	BucketAfternoon TimeBucket = "afternoon"
	BucketEvening   TimeBucket = "evening"
)

// Preferences is the long-lived per-identity accumulator derived from
// confirmed bookings. Counters survive dialog clears; only an explicit
// staleness sweep resets them.
type Preferences struct {
	ServiceCounts map[int64]int      `json:"serviceCounts,omitempty"`
	StaffCounts   map[int64]int      `json:"staffCounts,omitempty"`
	PairCounts    map[string]int     `json:"pairCounts,omitempty"`
	TimeCounts    map[TimeBucket]int `json:"timeCounts,omitempty"`
	WeekdayCount  int                `json:"weekdayCount"`
	WeekendCount  int                `json:"weekendCount"`

	ServiceNames map[int64]string `json:"serviceNames,omitempty"`
	StaffNames   map[int64]string `json:"staffNames,omitempty"`

	LastServiceID int64  `json:"lastServiceId,omitempty"`
	LastStaffID   int64  `json:"lastStaffId,omitempty"`
	LastDate      string `json:"lastDate,omitempty"`
	LastTime      string `json:"lastTime,omitempty"`

	FavoriteServiceID   *int64      `json:"favoriteServiceId,omitempty"`
	FavoriteServiceName *string     `json:"favoriteServiceName,omitempty"`
	FavoriteStaffID     *int64      `json:"favoriteStaffId,omitempty"`
	FavoriteStaffName   *string     `json:"favoriteStaffName,omitempty"`
	UsualContext        *string     `json:"usualContext,omitempty"`
	PreferredTime       *TimeBucket `json:"preferredTime,omitempty"`

	TotalBookings int       `json:"totalBookings"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// FullContext is the derived aggregate handed to the command/response
// oracle. It is never the source of truth: every field is
// reconstructable from the four underlying data classes.
type FullContext struct {
	TenantID int64  `json:"tenantId"`
	Subject  string `json:"subject"`

	Client      *ClientRecord  `json:"client,omitempty"`
	Dialog      *DialogContext `json:"dialog,omitempty"`
	Preferences *Preferences   `json:"preferences,omitempty"`

	// Merged views per the aggregation priority rules.
	ClientName        string    `json:"clientName,omitempty"`
	CurrentSelection  Selection `json:"currentSelection"`
	FavoriteServiceID *int64    `json:"favoriteServiceId,omitempty"`
	FavoriteStaffID   *int64    `json:"favoriteStaffId,omitempty"`

	Messages []MessageLogEntry `json:"messages"`

	IsNewClient     bool        `json:"isNewClient"`
	HasActiveDialog bool        `json:"hasActiveDialog"`
	DialogState     DialogState `json:"dialogState"`
	Timestamp       time.Time   `json:"timestamp"`

	// Error is set on a degraded context (invalid identity or store
	// failure). Callers should treat such a context as a fresh session.
	Error string `json:"error,omitempty"`
}

// ProcessingStatus is the short-lived in-flight marker used to detect
// duplicate inbound triggers for one identity.
type ProcessingStatus struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// CheckResult is one component probe inside a health report.
type CheckResult struct {
	OK        bool   `json:"ok"`
	LatencyMS int64  `json:"latencyMs"`
	Error     string `json:"error,omitempty"`
}

// HealthReport aggregates store probes for the health endpoint.
type HealthReport struct {
	Status string                 `json:"status"` // "ok" | "degraded"
	Checks map[string]CheckResult `json:"checks"`
}
