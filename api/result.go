package api

import (
	"context"
	"encoding/json"
	"net/http"
)

// Response is the outcome of Client.Do. Success and Code are mutually exclusive:
// a failed call always carries a Code and an Error message.
type Response struct {
	Success bool                `json:"success"`
	Status  int                 `json:"status,omitempty"`
	Data    json.RawMessage     `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
	Code    ErrorKind           `json:"code,omitempty"`
	Fields  map[string][]string `json:"fields,omitempty"`

	URL       string `json:"-"`
	Method    string `json:"-"`
	RequestID string `json:"-"`
}

// Err returns nil on success, otherwise an *Error.
func (r *Response) Err() error {
	if r == nil {
		return NewError("", "", 0, KindUnknown, "no response")
	}
	if r.Success {
		return nil
	}
	e := NewError(r.URL, r.Method, r.Status, r.Code, r.Error)
	e.Body = string(r.Data)
	e.Fields = r.Fields
	e.RequestID = r.RequestID
	return e
}

// Decode unmarshals Data into v. Empty data leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return nil
	}
	return json.Unmarshal(r.Data, v)
}

func failure(status int, kind ErrorKind, message string) *Response {
	return &Response{Status: status, Code: kind, Error: message}
}

// Result is the typed form of Response.
type Result[T any] struct {
	Success bool
	Data    T
	Status  int
	Error   string
	Code    ErrorKind
	Fields  map[string][]string
	// Raw is the undecoded payload. Failed SUBSCRIPTION_REQUIRED and VALIDATION_ERROR
	// results keep the server payload here.
	Raw json.RawMessage

	resp *Response
}

// Err returns nil on success, otherwise an *Error.
func (r Result[T]) Err() error {
	if r.Success {
		return nil
	}
	if r.resp != nil {
		return r.resp.Err()
	}
	return NewError("", "", r.Status, r.Code, r.Error)
}

// Unwrap returns the data and the error form of the result.
func (r Result[T]) Unwrap() (T, error) {
	return r.Data, r.Err()
}

// ResultOf converts resp into a Result, decoding Data into T on success.
// A success body that does not decode as T becomes an UNKNOWN_ERROR result.
func ResultOf[T any](resp *Response) Result[T] {
	res := Result[T]{
		Success: resp.Success,
		Status:  resp.Status,
		Error:   resp.Error,
		Code:    resp.Code,
		Fields:  resp.Fields,
		Raw:     resp.Data,
		resp:    resp,
	}
	if !resp.Success || len(resp.Data) == 0 {
		return res
	}
	if err := json.Unmarshal(resp.Data, &res.Data); err != nil {
		res.Success = false
		res.Code = KindUnknown
		res.Error = "error decoding response: " + err.Error()
		res.resp = &Response{
			Status:    resp.Status,
			Data:      resp.Data,
			Error:     res.Error,
			Code:      KindUnknown,
			URL:       resp.URL,
			Method:    resp.Method,
			RequestID: resp.RequestID,
		}
	}
	return res
}

// Call issues req and decodes the response data into T.
func Call[T any](ctx context.Context, c *Client, req Request) Result[T] {
	return ResultOf[T](c.Do(ctx, req))
}

// Get is Call with method GET.
func Get[T any](ctx context.Context, c *Client, path string) Result[T] {
	return Call[T](ctx, c, Request{Method: http.MethodGet, Path: path})
}

// Post is Call with method POST.
func Post[T any](ctx context.Context, c *Client, path string, body any) Result[T] {
	return Call[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Patch is Call with method PATCH.
func Patch[T any](ctx context.Context, c *Client, path string, body any) Result[T] {
	return Call[T](ctx, c, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete is Call with method DELETE.
func Delete[T any](ctx context.Context, c *Client, path string) Result[T] {
	return Call[T](ctx, c, Request{Method: http.MethodDelete, Path: path})
}
