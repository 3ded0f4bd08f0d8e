package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/penaku/opn-admin/internal/apiclient"
)

// countConcurrency bounds the attendance requests Counts runs at once.
const countConcurrency = 4

// Attendance manages event attendance.
type Attendance struct {
	api      Requester
	validate *validator.Validate
}

func attendancePath(eventID int) string {
	return eventPath(eventID) + "/attendance"
}

// List returns the attendance records of an event. A 404 yields no records.
func (a *Attendance) List(ctx context.Context, eventID int) ([]EventAttendance, error) {
	if err := checkID(eventID); err != nil {
		return nil, err
	}

	var out []EventAttendance
	if err := a.api.Do(ctx, http.MethodGet, attendancePath(eventID), nil, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			return []EventAttendance{}, nil
		}
		return nil, fmt.Errorf("listing attendance of event %d: %w", eventID, err)
	}
	if out == nil {
		out = []EventAttendance{}
	}
	return out, nil
}

// Save creates or updates attendance records for an event.
func (a *Attendance) Save(ctx context.Context, eventID int, records []AttendanceFormData) ([]EventAttendance, error) {
	if err := checkID(eventID); err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no attendance records to save")
	}
	if err := a.validate.Var(records, "dive"); err != nil {
		return nil, fmt.Errorf("invalid attendance: %w", err)
	}

	var out []EventAttendance
	if err := a.api.Do(ctx, http.MethodPost, attendancePath(eventID), nil, records, &out); err != nil {
		return nil, fmt.Errorf("saving attendance of event %d: %w", eventID, err)
	}
	slog.InfoContext(ctx, "attendance saved", "event_id", eventID, "records", len(records))
	return out, nil
}

// Counts returns the number of attendance records per event ID. Events whose
// attendance cannot be fetched count as 0. Only cancellation of ctx fails the call.
func (a *Attendance) Counts(ctx context.Context, events []Event) (map[int]int, error) {
	var (
		mu     sync.Mutex
		counts = make(map[int]int, len(events))
	)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(countConcurrency)

	for _, ev := range events {
		if ev.ID <= 0 {
			continue
		}
		g.Go(func() error {
			records, err := a.List(gCtx, ev.ID)
			n := len(records)
			if err != nil {
				if apiclient.IsCanceled(err) {
					return err
				}
				slog.WarnContext(gCtx, "attendance count unavailable", "event_id", ev.ID, "error", err)
				n = 0
			}
			mu.Lock()
			counts[ev.ID] = n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}

// Roster returns the event's attendance, or a default "present" record for
// every member when the backend has none recorded yet.
func (a *Attendance) Roster(ctx context.Context, eventID int, members MembersByDivision) ([]EventAttendance, error) {
	records, err := a.List(ctx, eventID)
	if err != nil {
		if apiclient.IsCanceled(err) || apiclient.IsAuthRequired(err) {
			return nil, err
		}
		slog.WarnContext(ctx, "attendance unavailable, using defaults", "event_id", eventID, "error", err)
		records = nil
	}
	if len(records) > 0 {
		return records, nil
	}

	divisions := make([]string, 0, len(members))
	for division := range members {
		divisions = append(divisions, division)
	}
	sort.Strings(divisions)

	roster := []EventAttendance{}
	for _, division := range divisions {
		for _, m := range members[division] {
			if m.ID <= 0 {
				continue
			}
			name := m.FullName
			if name == "" {
				name = "Tidak ada nama"
			}
			roster = append(roster, EventAttendance{
				ID:         m.ID,
				EventID:    eventID,
				MemberID:   m.ID,
				MemberName: name,
				Division:   division,
				Status:     AttendancePresent,
			})
		}
	}
	return roster, nil
}
