package apiclient

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"time"
)

// DefaultUploadTimeout bounds one upload.
const DefaultUploadTimeout = 30 * time.Second

// File is one part of a multipart upload.
type File struct {
	// FieldName defaults to "files".
	FieldName   string
	Name        string
	ContentType string
	Content     io.Reader
}

// UploadClient sends multipart uploads. It injects the bearer token like
// Client but never refreshes: a 401 clears the credentials and returns an
// *AuthRequiredError.
type UploadClient struct {
	r *requester
}

// NewUploadClient creates an UploadClient for baseURL. WithRefresher is ignored.
func NewUploadClient(baseURL string, store CredentialStore, opts ...Option) (*UploadClient, error) {
	o := options{timeout: DefaultUploadTimeout}
	for _, opt := range opts {
		opt(&o)
	}
	o.refresher = nil

	r, err := newRequester(baseURL, store, o)
	if err != nil {
		return nil, err
	}
	return &UploadClient{r: r}, nil
}

// Upload posts files and extra form fields to path as multipart/form-data and
// decodes the JSON response into out. The body is streamed, not buffered.
func (u *UploadClient) Upload(ctx context.Context, path string, files []File, fields map[string]string, out any) error {
	if len(files) == 0 {
		return fmt.Errorf("no files to upload")
	}

	ctx, cancel := context.WithTimeout(ctx, u.r.timeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.r.url(path, nil), pr)
	if err != nil {
		_ = pr.Close()
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", mw.FormDataContentType())

	// The transport closes pr when it stops reading, which unblocks the writer.
	go func() {
		pw.CloseWithError(writeMultipart(mw, files, fields))
	}()
	defer func() { _ = pr.Close() }()

	return u.r.execute(ctx, req, out)
}

func writeMultipart(mw *multipart.Writer, files []File, fields map[string]string) error {
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			return fmt.Errorf("writing field %q: %w", name, err)
		}
	}

	for _, f := range files {
		field := f.FieldName
		if field == "" {
			field = "files"
		}

		var (
			part io.Writer
			err  error
		)
		if f.ContentType == "" {
			part, err = mw.CreateFormFile(field, f.Name)
		} else {
			h := make(textproto.MIMEHeader)
			h.Set("Content-Disposition", multipart.FileContentDisposition(field, f.Name))
			h.Set("Content-Type", f.ContentType)
			part, err = mw.CreatePart(h)
		}
		if err != nil {
			return fmt.Errorf("creating part for %q: %w", f.Name, err)
		}
		if _, err := io.Copy(part, f.Content); err != nil {
			return fmt.Errorf("writing %q: %w", f.Name, err)
		}
	}

	return mw.Close()
}
