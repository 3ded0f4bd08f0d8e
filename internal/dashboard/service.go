package dashboard

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/penaku/opn-admin/internal/apiclient"
)

// Requester sends JSON requests to the backend. *apiclient.Client implements it.
type Requester interface {
	Do(ctx context.Context, method, path string, query url.Values, body, out any) error
}

// Uploader sends multipart uploads. *apiclient.UploadClient implements it.
type Uploader interface {
	Upload(ctx context.Context, path string, files []apiclient.File, fields map[string]string, out any) error
}

var (
	_ Requester = (*apiclient.Client)(nil)
	_ Uploader  = (*apiclient.UploadClient)(nil)
)

// ErrInvalidID is returned for non-positive resource IDs before any request is sent.
var ErrInvalidID = errors.New("invalid id: must be a positive number")

// Service groups the resource services of the admin backend.
type Service struct {
	Events     *Events
	Attendance *Attendance
	Members    *Members
	News       *News
	Minutes    *Minutes
}

// New creates a Service. uploads may be nil, in which case photo uploads fail.
func New(api Requester, uploads Uploader) *Service {
	v := newValidator()
	return &Service{
		Events:     &Events{api: api, uploads: uploads, validate: v},
		Attendance: &Attendance{api: api, validate: v},
		Members:    &Members{api: api},
		News:       &News{api: api, uploads: uploads},
		Minutes:    &Minutes{api: api, validate: v},
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// The "notblank" rule rejects strings that are empty after trimming whitespace.
	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	return v
}

func checkID(id int) error {
	if id <= 0 {
		return fmt.Errorf("%w (got %d)", ErrInvalidID, id)
	}
	return nil
}

func checkFiles(uploads Uploader, files []apiclient.File) error {
	if uploads == nil {
		return errors.New("uploads are not configured")
	}
	if len(files) == 0 {
		return errors.New("no files to upload")
	}
	return nil
}
