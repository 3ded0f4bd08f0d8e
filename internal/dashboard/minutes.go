package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/penaku/opn-admin/internal/apiclient"
)

// Minutes manages meeting minutes.
type Minutes struct {
	api      Requester
	validate *validator.Validate
}

func minutesPath(id int) string {
	return "/meeting-minutes/" + strconv.Itoa(id)
}

// List returns one page of meeting minutes. A 404 yields an empty page.
func (m *Minutes) List(ctx context.Context, page, limit int) (Page[MeetingMinutes], error) {
	q, page, limit, err := pageQuery(page, limit)
	if err != nil {
		return Page[MeetingMinutes]{}, err
	}

	var out Page[MeetingMinutes]
	if err := m.api.Do(ctx, http.MethodGet, "/meeting-minutes/", q, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			return emptyPage[MeetingMinutes](page, limit), nil
		}
		return Page[MeetingMinutes]{}, fmt.Errorf("listing meeting minutes: %w", err)
	}
	return out, nil
}

// Get returns one meeting minutes record.
func (m *Minutes) Get(ctx context.Context, id int) (MeetingMinutes, error) {
	if err := checkID(id); err != nil {
		return MeetingMinutes{}, err
	}

	var out MeetingMinutes
	if err := m.api.Do(ctx, http.MethodGet, minutesPath(id), nil, nil, &out); err != nil {
		return MeetingMinutes{}, fmt.Errorf("getting meeting minutes %d: %w", id, err)
	}
	return out, nil
}

// Create validates form and records new minutes.
func (m *Minutes) Create(ctx context.Context, form MeetingMinutesFormData) (MeetingMinutes, error) {
	if err := m.check(form); err != nil {
		return MeetingMinutes{}, err
	}

	var out MeetingMinutes
	if err := m.api.Do(ctx, http.MethodPost, "/meeting-minutes/", nil, form, &out); err != nil {
		return MeetingMinutes{}, fmt.Errorf("creating meeting minutes: %w", err)
	}
	return out, nil
}

// Update replaces the minutes with form.
func (m *Minutes) Update(ctx context.Context, id int, form MeetingMinutesFormData) (MeetingMinutes, error) {
	if err := checkID(id); err != nil {
		return MeetingMinutes{}, err
	}
	if err := m.check(form); err != nil {
		return MeetingMinutes{}, err
	}

	var out MeetingMinutes
	if err := m.api.Do(ctx, http.MethodPut, minutesPath(id), nil, form, &out); err != nil {
		return MeetingMinutes{}, fmt.Errorf("updating meeting minutes %d: %w", id, err)
	}
	return out, nil
}

func (m *Minutes) check(form MeetingMinutesFormData) error {
	if err := m.validate.Struct(form); err != nil {
		return fmt.Errorf("invalid meeting minutes: %w", err)
	}
	if form.Date.IsZero() {
		return errors.New("invalid meeting minutes: date is required")
	}
	return nil
}
