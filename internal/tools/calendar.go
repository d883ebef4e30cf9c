package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const meetingLinkBase = "https://meet.company.com/"

// Booking is one scheduled meeting.
type Booking struct {
	BookingID       string `json:"booking_id"`
	LeadEmail       string `json:"lead_email"`
	LeadName        string `json:"lead_name"`
	MeetingType     string `json:"meeting_type"`
	ScheduledAt     string `json:"scheduled_at"`
	DurationMinutes int    `json:"duration_minutes"`
	MeetingLink     string `json:"meeting_link"`
	Status          string `json:"status"`
}

// CalendarAdapter books meetings. Bookings persist in Redis; in production
// this would sit in front of a real calendar API.
type CalendarAdapter struct {
	rdb redis.Cmdable
	now func() time.Time
}

func NewCalendarAdapter(rdb redis.Cmdable) *CalendarAdapter {
	return &CalendarAdapter{rdb: rdb, now: time.Now}
}

func (a *CalendarAdapter) Name() string {
	return "calendar_tool"
}

func (a *CalendarAdapter) Kind() Kind {
	return KindCalendar
}

func (a *CalendarAdapter) Execute(ctx context.Context, action string, params Params) Result {
	switch action {
	case "book_meeting":
		return a.bookMeeting(ctx, params)
	case "check_availability":
		return a.checkAvailability(ctx, params)
	case "cancel_meeting":
		return a.cancelMeeting(ctx, params)
	default:
		return Failure("unknown calendar action: " + action)
	}
}

func (a *CalendarAdapter) bookingKey(id string) string {
	return "calendar:booking:" + id
}

func (a *CalendarAdapter) bookMeeting(ctx context.Context, params Params) Result {
	leadEmail := params.String("lead_email")
	if leadEmail == "" {
		return Failure("book_meeting requires lead_email")
	}

	var meetingTime time.Time
	if preferred := params.String("preferred_date"); preferred != "" {
		parsed, err := time.Parse(time.RFC3339, preferred)
		if err != nil {
			return Failure("invalid date format: " + preferred)
		}
		meetingTime = parsed
	} else {
		// auto-schedule two days out at 10:00 UTC
		d := a.now().UTC().AddDate(0, 0, 2)
		meetingTime = time.Date(d.Year(), d.Month(), d.Day(), 10, 0, 0, 0, time.UTC)
	}

	leadName := params.String("lead_name")
	if leadName == "" {
		leadName = "Prospect"
	}
	meetingType := params.String("meeting_type")
	if meetingType == "" {
		meetingType = "discovery_call"
	}

	bookingID := uuid.NewString()
	booking := Booking{
		BookingID:       bookingID,
		LeadEmail:       leadEmail,
		LeadName:        leadName,
		MeetingType:     meetingType,
		ScheduledAt:     meetingTime.Format(time.RFC3339),
		DurationMinutes: params.Int("duration_minutes", 30),
		MeetingLink:     meetingLinkBase + bookingID[:8],
		Status:          "confirmed",
	}

	b, err := json.Marshal(booking)
	if err != nil {
		return Failure(fmt.Sprintf("marshal booking: %v", err))
	}
	if err := a.rdb.Set(ctx, a.bookingKey(bookingID), b, 0).Err(); err != nil {
		return TransientFailure(fmt.Sprintf("calendar operation failed: %v", err))
	}

	return Result{Success: true, Data: map[string]any{
		"booking_id":       booking.BookingID,
		"lead_email":       booking.LeadEmail,
		"lead_name":        booking.LeadName,
		"meeting_type":     booking.MeetingType,
		"scheduled_at":     booking.ScheduledAt,
		"duration_minutes": booking.DurationMinutes,
		"meeting_link":     booking.MeetingLink,
		"status":           booking.Status,
	}}
}

func (a *CalendarAdapter) checkAvailability(ctx context.Context, params Params) Result {
	start := a.now().UTC()
	if date := params.String("date"); date != "" {
		parsed, err := time.Parse(time.RFC3339, date)
		if err != nil {
			return Failure("invalid date format: " + date)
		}
		start = parsed
	}
	numDays := params.Int("num_days", 7)

	var slots []string
	for day := 0; day < numDays; day++ {
		d := start.AddDate(0, 0, day)
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		for _, hour := range []int{10, 14, 16} {
			slot := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
			if slot.After(start) {
				slots = append(slots, slot.Format(time.RFC3339))
			}
		}
	}

	limited := slots
	if len(limited) > 10 {
		limited = limited[:10]
	}
	return Result{Success: true, Data: map[string]any{
		"available_slots": limited,
		"total_slots":     len(slots),
	}}
}

func (a *CalendarAdapter) cancelMeeting(ctx context.Context, params Params) Result {
	bookingID := params.String("booking_id")
	raw, err := a.rdb.Get(ctx, a.bookingKey(bookingID)).Result()
	if err == redis.Nil {
		return Failure("Booking not found: " + bookingID)
	}
	if err != nil {
		return TransientFailure(fmt.Sprintf("calendar operation failed: %v", err))
	}

	var booking Booking
	if err := json.Unmarshal([]byte(raw), &booking); err != nil {
		return Failure(fmt.Sprintf("unmarshal booking: %v", err))
	}
	booking.Status = "cancelled"

	b, err := json.Marshal(booking)
	if err != nil {
		return Failure(fmt.Sprintf("marshal booking: %v", err))
	}
	if err := a.rdb.Set(ctx, a.bookingKey(bookingID), b, 0).Err(); err != nil {
		return TransientFailure(fmt.Sprintf("calendar operation failed: %v", err))
	}

	return Result{Success: true, Data: map[string]any{
		"booking_id": bookingID,
		"status":     "cancelled",
	}}
}

var _ Adapter = (*CalendarAdapter)(nil)
