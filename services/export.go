package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

// ErrExportDisabled is returned when no object storage is configured.
var ErrExportDisabled = errors.New("report export is not configured")

// Exporter uploads report tables to object storage.
type Exporter struct {
	Storage ObjectStorage
}

// ExportKey builds the object key of a report, e.g.
// ExportKey("payments", "bob,alice", "150-160") is "reports/payments/bob-alice-150-160.json".
func ExportKey(report string, parts ...string) string {
	name := slug.Make(strings.Join(parts, " "))
	if name == "" {
		name = "all"
	}
	return fmt.Sprintf("reports/%s/%s.json", slug.Make(report), name)
}

// Export uploads t as JSON and returns its URL.
func (x *Exporter) Export(ctx context.Context, t *Table, parts ...string) (string, error) {
	if x == nil || x.Storage == nil {
		return "", ErrExportDisabled
	}
	body, err := json.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s report: %w", t.Name, err)
	}
	return x.Storage.PutObject(ctx, ExportKey(t.Name, parts...), "application/json", body)
}
