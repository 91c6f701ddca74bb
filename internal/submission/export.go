package submission

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"path"
	"time"

	"clip-tracker/internal/models"
	"clip-tracker/internal/storage"

	"github.com/oklog/ulid/v2"
)

// ExportSink writes each submission as a JSON blob and returns its URL.
type ExportSink struct {
	Storage storage.Storage
}

func (s *ExportSink) Name() string { return "export" }

func (s *ExportSink) Submit(ctx context.Context, sub models.Submission) (Receipt, error) {
	data, err := json.MarshalIndent(sub, "", "  ")
	if err != nil {
		return Receipt{}, err
	}

	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return Receipt{}, fmt.Errorf("export key: %w", err)
	}

	// ULIDs sort by time, so a listing of one video's exports is chronological
	key := path.Join("submissions", sanitizeKey(sub.VideoID), id.String()+".json")
	url, err := s.Storage.Put(ctx, key, bytes.NewReader(data), "application/json")
	if err != nil {
		return Receipt{}, err
	}

	return Receipt{Sink: s.Name(), Reference: url}, nil
}

// sanitizeKey keeps ids usable as a single path segment.
func sanitizeKey(id string) string {
	b := []byte(id)
	for i, c := range b {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			b[i] = '_'
		}
	}
	if len(b) == 0 {
		return "unknown"
	}
	return string(b)
}
