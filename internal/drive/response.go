package drive

import (
	"context"
	"sync"
)

// response is the terminal-event core shared by every call handle.
type response struct {
	done chan struct{}
	once sync.Once
	err  error
}

func newResponse() response {
	return response{done: make(chan struct{})}
}

// Finished returns a channel closed exactly once, when the call is complete.
func (r *response) Finished() <-chan struct{} {
	return r.done
}

// Err returns why the call failed, or nil. Valid after Finished.
func (r *response) Err() error {
	<-r.done
	return r.err
}

// Wait blocks until the call finishes or ctx is done.
func (r *response) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *response) finish(err error) {
	r.once.Do(func() {
		r.err = err
		close(r.done)
	})
}

// ConnectResponse is the handle for a Connect call.
type ConnectResponse struct {
	response
	refreshToken string
}

// RefreshToken returns the refresh token to persist, or "" if the exchange
// failed. Valid after Finished.
func (r *ConnectResponse) RefreshToken() string {
	<-r.done
	return r.refreshToken
}

// ListFilesResponse is the handle for a ListFiles call.
//
// Each fetched page is delivered on FilesFound in page order, carrying only
// that page's files. FilesFound is closed after the last page and before
// Finished closes. Callers must drain FilesFound or cancel the call's context.
type ListFilesResponse struct {
	response
	query string
	files chan []File
}

func newListFilesResponse(query string, buffer int) *ListFilesResponse {
	if buffer < 1 {
		buffer = 1
	}
	return &ListFilesResponse{
		response: newResponse(),
		query:    query,
		files:    make(chan []File, buffer),
	}
}

// Query returns the query the listing was requested with.
func (r *ListFilesResponse) Query() string {
	return r.query
}

// FilesFound delivers one slice of files per fetched page.
func (r *ListFilesResponse) FilesFound() <-chan []File {
	return r.files
}

// Collect drains every page and returns the accumulated files together
// with the listing's error, if any.
func (r *ListFilesResponse) Collect(ctx context.Context) ([]File, error) {
	var all []File
	for {
		select {
		case page, ok := <-r.files:
			if !ok {
				return all, r.Err()
			}
			all = append(all, page...)
		case <-ctx.Done():
			return all, ctx.Err()
		}
	}
}

func (r *ListFilesResponse) finishList(err error) {
	close(r.files)
	r.finish(err)
}

// GetFileResponse is the handle for a GetFile call.
type GetFileResponse struct {
	response
	fileID string
	file   File
}

// FileID returns the requested identifier.
func (r *GetFileResponse) FileID() string {
	return r.fileID
}

// File returns the fetched metadata, or a zero File if the lookup failed.
// Valid after Finished.
func (r *GetFileResponse) File() File {
	<-r.done
	return r.file
}
