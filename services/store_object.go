package services

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"numerai-reports/models"
	"numerai-reports/utils"
)

// ObjectStorage is the subset of a bucket client the object record store needs.
type ObjectStorage interface {
	PutObject(ctx context.Context, key, contentType string, body []byte) (string, error)
	GetObject(ctx context.Context, key string) ([]byte, error)
}

// ObjectRecordStore keeps each resolved round as a gzipped JSON object.
type ObjectRecordStore struct {
	Storage ObjectStorage
	Prefix  string
}

func NewObjectRecordStore(storage ObjectStorage) *ObjectRecordStore {
	return &ObjectRecordStore{Storage: storage, Prefix: "rounds"}
}

func (s *ObjectRecordStore) key(round int) string {
	return fmt.Sprintf("%s/%05d.json.gz", s.Prefix, round)
}

type roundObject struct {
	Round   int                       `json:"round"`
	Entries []models.PerformanceEntry `json:"entries"`
}

func (s *ObjectRecordStore) LoadRound(ctx context.Context, round int) ([]models.PerformanceEntry, bool, error) {
	data, err := s.Storage.GetObject(ctx, s.key(round))
	if errors.Is(err, utils.ErrObjectNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, false, fmt.Errorf("round %d object: %w", round, err)
	}
	defer zr.Close()
	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, false, fmt.Errorf("round %d object: %w", round, err)
	}

	var obj roundObject
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false, fmt.Errorf("round %d object: %w", round, err)
	}
	if obj.Round != round {
		return nil, false, fmt.Errorf("object %s holds round %d", s.key(round), obj.Round)
	}
	return obj.Entries, true, nil
}

func (s *ObjectRecordStore) SaveRound(ctx context.Context, round int, entries []models.PerformanceEntry) error {
	raw, err := json.Marshal(roundObject{Round: round, Entries: entries})
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return err
	}
	_, err = s.Storage.PutObject(ctx, s.key(round), "application/gzip", buf.Bytes())
	return err
}
