package dashboard

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/oapi-codegen/runtime/types"
)

// Event statuses as reported by the backend.
const (
	EventStatusUpcoming = "akan datang"
	EventStatusDone     = "selesai"
)

// Attendance statuses.
const (
	AttendancePresent = "Hadir"
	AttendanceExcused = "Izin"
	AttendanceAbsent  = "Alfa"
)

// DefaultPageSize is used when a list call passes a non-positive limit.
const DefaultPageSize = 10

// PaginationMeta describes one page of a list endpoint.
type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalCount *int `json:"total_count,omitempty"`
	TotalPages int  `json:"total_pages"`
}

// Page is one page of a list endpoint. The backend answers either with a
// bare array or with a {data, meta} envelope; both decode into Page.
type Page[T any] struct {
	Data []T            `json:"data"`
	Meta PaginationMeta `json:"meta"`
}

// UnmarshalJSON accepts a bare array or a {data, meta} envelope.
func (p *Page[T]) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return err
		}
		*p = Page[T]{Data: items, Meta: PaginationMeta{Page: 1, Limit: len(items), TotalPages: 1}}
		return nil
	}

	var env struct {
		Data []T            `json:"data"`
		Meta PaginationMeta `json:"meta"`
	}
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return fmt.Errorf("decoding page: %w", err)
	}
	*p = Page[T]{Data: env.Data, Meta: env.Meta}
	return nil
}

// emptyPage is what list calls return when the backend has nothing (404).
func emptyPage[T any](page, limit int) Page[T] {
	return Page[T]{Data: []T{}, Meta: PaginationMeta{Page: page, Limit: limit}}
}

// Photo is an uploaded image attached to an event or news item.
type Photo struct {
	ID         int    `json:"id"`
	PhotoURL   string `json:"photo_url"`
	UploadedAt string `json:"uploaded_at,omitempty"`
}

// Event is an organization event.
type Event struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Date        types.Date `json:"date"`
	Time        string     `json:"time"`
	Location    string     `json:"location"`
	Status      string     `json:"status"`
	Minutes     string     `json:"minutes,omitempty"`
	Photos      []Photo    `json:"photos,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"`
}

// EventFormData creates an event.
type EventFormData struct {
	Title       string     `json:"title" validate:"notblank"`
	Description string     `json:"description"`
	Date        types.Date `json:"date"`
	Time        string     `json:"time" validate:"required"`
	Location    string     `json:"location" validate:"notblank"`
	Status      string     `json:"status" validate:"oneof='akan datang' selesai"`
	Minutes     string     `json:"minutes,omitempty"`
}

// EventPatch updates an event. Nil fields are left unchanged.
type EventPatch struct {
	Title       *string     `json:"title,omitempty" validate:"omitnil,notblank"`
	Description *string     `json:"description,omitempty"`
	Date        *types.Date `json:"date,omitempty"`
	Time        *string     `json:"time,omitempty"`
	Location    *string     `json:"location,omitempty" validate:"omitnil,notblank"`
	Status      *string     `json:"status,omitempty" validate:"omitnil,oneof='akan datang' selesai"`
	Minutes     *string     `json:"minutes,omitempty"`
}

// EventSearch filters events. Zero fields are not sent.
type EventSearch struct {
	Keyword   string
	Date      *types.Date
	Time      string
	Status    string
	StartDate *types.Date
	EndDate   *types.Date
	Page      int
	Limit     int
}

// EventAttendance is one member's attendance at an event.
type EventAttendance struct {
	ID         int    `json:"id"`
	EventID    int    `json:"event_id"`
	MemberID   int    `json:"member_id"`
	MemberName string `json:"member_name"`
	Division   string `json:"division,omitempty"`
	Status     string `json:"status"`
	Notes      string `json:"notes,omitempty"`
	CreatedAt  string `json:"created_at,omitempty"`
	UpdatedAt  string `json:"updated_at,omitempty"`
}

// AttendanceFormData records one member's attendance.
type AttendanceFormData struct {
	MemberID int    `json:"member_id" validate:"gt=0"`
	Status   string `json:"status" validate:"oneof=Hadir Izin Alfa"`
	Notes    string `json:"notes,omitempty"`
}

// Member is an organization member.
type Member struct {
	ID         int    `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone_number,omitempty"`
	Position   string `json:"position,omitempty"`
	Division   string `json:"division,omitempty"`
	PhotoURL   string `json:"photo_url,omitempty"`
	BirthDate  string `json:"birth_date,omitempty"`
	Department string `json:"department,omitempty"`
}

// MembersByDivision is the member list as the backend groups it.
type MembersByDivision map[string][]Member

// NewsItem is a published news item.
type NewsItem struct {
	ID          int     `json:"id"`
	Title       string  `json:"title"`
	Content     string  `json:"content"`
	Category    string  `json:"category,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Photos      []Photo `json:"photos,omitempty"`
	CreatedAt   string  `json:"created_at,omitempty"`
	UpdatedAt   string  `json:"updated_at,omitempty"`
}

// MeetingMinutes is the record of a meeting.
type MeetingMinutes struct {
	ID          int        `json:"id"`
	Title       string     `json:"title"`
	Date        types.Date `json:"date"`
	Description string     `json:"description"`
	DocumentURL string     `json:"document_url,omitempty"`
	EventID     *int       `json:"event_id,omitempty"`
	CreatedAt   string     `json:"created_at,omitempty"`
	UpdatedAt   string     `json:"updated_at,omitempty"`
}

// MeetingMinutesFormData creates or replaces meeting minutes.
type MeetingMinutesFormData struct {
	Title       string     `json:"title" validate:"notblank"`
	Date        types.Date `json:"date"`
	Description string     `json:"description" validate:"notblank"`
	DocumentURL string     `json:"document_url,omitempty" validate:"omitempty,url"`
	EventID     *int       `json:"event_id,omitempty" validate:"omitnil,gt=0"`
}
