// Package resource is the generic CRUD client for a REST collection.
package resource

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wagtee/go-client/api"
)

// Page is the backend's paginated list envelope.
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether another page follows.
func (p Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// DeleteCount is returned by BulkDelete.
type DeleteCount struct {
	Deleted int `json:"deleted_count"`
}

// UpdateCount is returned by BulkUpdate.
type UpdateCount struct {
	Updated int `json:"updated_count"`
}

// Resource maps CRUD calls onto a collection path. T is the entity, C the create
// payload and U the update payload.
type Resource[T, C, U any] struct {
	client *api.Client
	path   string
}

// New returns a Resource for path, such as "/base/services".
func New[T, C, U any](client *api.Client, path string) *Resource[T, C, U] {
	return &Resource[T, C, U]{client: client, path: path}
}

func (r *Resource[T, C, U]) Path() string {
	return r.path
}

func (r *Resource[T, C, U]) Client() *api.Client {
	return r.client
}

// ItemPath returns "<path>/<id>/" plus any suffix segments, each followed by a slash.
func (r *Resource[T, C, U]) ItemPath(id int, suffix ...string) string {
	p := fmt.Sprintf("%s/%d/", r.path, id)
	for _, s := range suffix {
		p += s + "/"
	}
	return p
}

// GetAll lists the collection. filters become the query string.
func (r *Resource[T, C, U]) GetAll(ctx context.Context, filters map[string]any) api.Result[Page[T]] {
	return api.Get[Page[T]](ctx, r.client, r.path+"/"+api.QueryFrom(filters))
}

func (r *Resource[T, C, U]) GetByID(ctx context.Context, id int) api.Result[T] {
	return api.Get[T](ctx, r.client, r.ItemPath(id))
}

func (r *Resource[T, C, U]) Create(ctx context.Context, data C) api.Result[T] {
	return api.Post[T](ctx, r.client, r.path+"/", data)
}

// Update sends a partial update.
func (r *Resource[T, C, U]) Update(ctx context.Context, id int, data U) api.Result[T] {
	return api.Patch[T](ctx, r.client, r.ItemPath(id), data)
}

func (r *Resource[T, C, U]) Delete(ctx context.Context, id int) api.Result[struct{}] {
	return api.Delete[struct{}](ctx, r.client, r.ItemPath(id))
}

func (r *Resource[T, C, U]) BulkDelete(ctx context.Context, ids []int) api.Result[DeleteCount] {
	return api.Call[DeleteCount](ctx, r.client, api.Request{
		Method: http.MethodDelete,
		Path:   r.path + "/bulk-delete/",
		Body:   map[string]any{"ids": ids},
	})
}

func (r *Resource[T, C, U]) BulkUpdate(ctx context.Context, ids []int, data U) api.Result[UpdateCount] {
	return api.Post[UpdateCount](ctx, r.client, r.path+"/bulk-update/", map[string]any{"ids": ids, "data": data})
}
