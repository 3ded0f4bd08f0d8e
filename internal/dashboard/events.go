package dashboard

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/oapi-codegen/runtime/types"

	"github.com/penaku/opn-admin/internal/apiclient"
)

// Events manages events.
type Events struct {
	api      Requester
	uploads  Uploader
	validate *validator.Validate
}

func eventPath(id int) string {
	return "/events/" + strconv.Itoa(id)
}

// List returns one page of events. A 404 yields an empty page.
func (e *Events) List(ctx context.Context, page, limit int) (Page[Event], error) {
	q, page, limit, err := pageQuery(page, limit)
	if err != nil {
		return Page[Event]{}, err
	}

	var out Page[Event]
	if err := e.api.Do(ctx, http.MethodGet, "/events/", q, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			slog.DebugContext(ctx, "no events found", "page", page)
			return emptyPage[Event](page, limit), nil
		}
		return Page[Event]{}, fmt.Errorf("listing events: %w", err)
	}
	return out, nil
}

// Search filters events. A 404 yields an empty page.
func (e *Events) Search(ctx context.Context, s EventSearch) (Page[Event], error) {
	page, limit := normalizePage(s.Page, s.Limit)
	q, err := newQuery().
		add("keyword", s.Keyword).
		add("date", formatDate(s.Date)).
		add("time", s.Time).
		add("status", s.Status).
		add("start_date", formatDate(s.StartDate)).
		add("end_date", formatDate(s.EndDate)).
		add("page", page).
		add("limit", limit).
		build()
	if err != nil {
		return Page[Event]{}, err
	}

	var out Page[Event]
	if err := e.api.Do(ctx, http.MethodGet, "/events/search", q, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			return emptyPage[Event](page, limit), nil
		}
		return Page[Event]{}, fmt.Errorf("searching events: %w", err)
	}
	return out, nil
}

// Get returns one event.
func (e *Events) Get(ctx context.Context, id int) (Event, error) {
	if err := checkID(id); err != nil {
		return Event{}, err
	}

	var out Event
	if err := e.api.Do(ctx, http.MethodGet, eventPath(id), nil, nil, &out); err != nil {
		return Event{}, fmt.Errorf("getting event %d: %w", id, err)
	}
	return out, nil
}

// Create validates form and creates the event.
func (e *Events) Create(ctx context.Context, form EventFormData) (Event, error) {
	if err := e.validate.Struct(form); err != nil {
		return Event{}, fmt.Errorf("invalid event: %w", err)
	}
	if form.Date.IsZero() {
		return Event{}, errors.New("invalid event: date is required")
	}

	var out Event
	if err := e.api.Do(ctx, http.MethodPost, "/events/", nil, form, &out); err != nil {
		return Event{}, fmt.Errorf("creating event: %w", err)
	}
	slog.InfoContext(ctx, "event created", "id", out.ID)
	return out, nil
}

// Update applies patch to the event.
func (e *Events) Update(ctx context.Context, id int, patch EventPatch) (Event, error) {
	if err := checkID(id); err != nil {
		return Event{}, err
	}
	if err := e.validate.Struct(patch); err != nil {
		return Event{}, fmt.Errorf("invalid event update: %w", err)
	}

	var out Event
	if err := e.api.Do(ctx, http.MethodPut, eventPath(id), nil, patch, &out); err != nil {
		return Event{}, fmt.Errorf("updating event %d: %w", id, err)
	}
	return out, nil
}

// UpdateMinutes replaces the event's minutes. Blank text is rejected.
func (e *Events) UpdateMinutes(ctx context.Context, id int, minutes string) (Event, error) {
	if err := checkID(id); err != nil {
		return Event{}, err
	}
	if strings.TrimSpace(minutes) == "" {
		return Event{}, errors.New("minutes must not be empty")
	}

	var out Event
	body := EventPatch{Minutes: &minutes}
	if err := e.api.Do(ctx, http.MethodPatch, eventPath(id), nil, body, &out); err != nil {
		return Event{}, fmt.Errorf("updating minutes of event %d: %w", id, err)
	}
	return out, nil
}

// Delete removes the event.
func (e *Events) Delete(ctx context.Context, id int) error {
	if err := checkID(id); err != nil {
		return err
	}
	if err := e.api.Do(ctx, http.MethodDelete, eventPath(id), nil, nil, nil); err != nil {
		return fmt.Errorf("deleting event %d: %w", id, err)
	}
	slog.InfoContext(ctx, "event deleted", "id", id)
	return nil
}

// UploadPhotos attaches photos to the event.
func (e *Events) UploadPhotos(ctx context.Context, id int, files []apiclient.File) ([]Photo, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := checkFiles(e.uploads, files); err != nil {
		return nil, err
	}

	var out []Photo
	if err := e.uploads.Upload(ctx, eventPath(id)+"/photos", files, nil, &out); err != nil {
		return nil, fmt.Errorf("uploading photos for event %d: %w", id, err)
	}
	return out, nil
}

// Upcoming returns the events still to come, earliest first. The input is not modified.
func Upcoming(events []Event) []Event {
	upcoming := make([]Event, 0, len(events))
	for _, ev := range events {
		if ev.Status == EventStatusUpcoming {
			upcoming = append(upcoming, ev)
		}
	}
	slices.SortStableFunc(upcoming, func(a, b Event) int {
		return cmp.Compare(a.Date.Unix(), b.Date.Unix())
	})
	return upcoming
}

func formatDate(d *types.Date) string {
	if d == nil || d.IsZero() {
		return ""
	}
	return d.Format(types.DateFormat)
}
