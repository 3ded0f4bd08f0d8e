package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/penaku/opn-admin/internal/apiclient"
)

// News reads news items and uploads their photos.
type News struct {
	api     Requester
	uploads Uploader
}

// NewsPhotosPath is the backend upload endpoint for a news item's photos.
func NewsPhotosPath(id int) string {
	return "/uploads/news/" + strconv.Itoa(id) + "/photos"
}

// List returns one page of news. A 404 yields an empty page.
func (n *News) List(ctx context.Context, page, limit int) (Page[NewsItem], error) {
	q, page, limit, err := pageQuery(page, limit)
	if err != nil {
		return Page[NewsItem]{}, err
	}

	var out Page[NewsItem]
	if err := n.api.Do(ctx, http.MethodGet, "/news/", q, nil, &out); err != nil {
		if apiclient.IsNotFound(err) {
			return emptyPage[NewsItem](page, limit), nil
		}
		return Page[NewsItem]{}, fmt.Errorf("listing news: %w", err)
	}
	return out, nil
}

// Get returns one news item.
func (n *News) Get(ctx context.Context, id int) (NewsItem, error) {
	if err := checkID(id); err != nil {
		return NewsItem{}, err
	}

	var out NewsItem
	if err := n.api.Do(ctx, http.MethodGet, "/news/"+strconv.Itoa(id), nil, nil, &out); err != nil {
		return NewsItem{}, fmt.Errorf("getting news %d: %w", id, err)
	}
	return out, nil
}

// UploadPhotos attaches photos to a news item.
func (n *News) UploadPhotos(ctx context.Context, id int, files []apiclient.File) ([]Photo, error) {
	if err := checkID(id); err != nil {
		return nil, err
	}
	if err := checkFiles(n.uploads, files); err != nil {
		return nil, err
	}

	var out []Photo
	if err := n.uploads.Upload(ctx, NewsPhotosPath(id), files, nil, &out); err != nil {
		return nil, fmt.Errorf("uploading photos for news %d: %w", id, err)
	}
	return out, nil
}
