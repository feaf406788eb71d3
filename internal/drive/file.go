package drive

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"time"
)

// File holds the metadata for one file in the remote drive. Values are
// snapshots taken when a response was decoded.
type File struct {
	ID           string
	ETag         string
	Title        string
	Size         int64
	DownloadURL  string
	ModifiedDate time.Time
	CreatedDate  time.Time
}

// IsZero reports whether f carries no file (e.g. a lookup that found nothing).
func (f File) IsZero() bool {
	return f.ID == ""
}

type fileJSON struct {
	ID           flexString `json:"id"`
	ETag         flexString `json:"etag"`
	Title        flexString `json:"title"`
	FileSize     flexInt64  `json:"fileSize"`
	DownloadURL  flexString `json:"downloadUrl"`
	ModifiedDate flexString `json:"modifiedDate"`
	CreatedDate  flexString `json:"createdDate"`
}

type listPage struct {
	Items         []json.RawMessage `json:"items"`
	NextPageToken string            `json:"nextPageToken"`
}

func decodeFile(raw []byte) (File, error) {
	if t := bytes.TrimSpace(raw); len(t) == 0 || t[0] != '{' {
		return File{}, errors.New("item is not an object")
	}
	var fj fileJSON
	if err := json.Unmarshal(raw, &fj); err != nil {
		return File{}, err
	}
	return File{
		ID:           string(fj.ID),
		ETag:         string(fj.ETag),
		Title:        string(fj.Title),
		Size:         int64(fj.FileSize),
		DownloadURL:  string(fj.DownloadURL),
		ModifiedDate: parseTime(string(fj.ModifiedDate)),
		CreatedDate:  parseTime(string(fj.CreatedDate)),
	}, nil
}

// decodeItems decodes a page of items, skipping entries that are not JSON
// objects. Missing or wrongly typed fields inside an object are zeroed.
func decodeItems(items []json.RawMessage) []File {
	files := make([]File, 0, len(items))
	for i, raw := range items {
		f, err := decodeFile(raw)
		if err != nil {
			slog.Warn("skipping undecodable drive item", "index", i, "error", err)
			continue
		}
		files = append(files, f)
	}
	return files
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// flexInt64 accepts a JSON number or a numeric string, as Drive encodes
// 64-bit sizes as strings. Anything else decodes to zero.
type flexInt64 int64

func (n *flexInt64) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	v, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		*n = 0
		return nil
	}
	*n = flexInt64(v)
	return nil
}

// flexString accepts any JSON scalar. Numbers and booleans keep their
// literal text; null, objects and arrays decode to "".
type flexString string

func (s *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	*s = ""
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		var v string
		if err := json.Unmarshal(data, &v); err == nil {
			*s = flexString(v)
		}
	case '{', '[', 'n':
	default:
		*s = flexString(data)
	}
	return nil
}
