package review

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// ExportVersion is written into every export.
const ExportVersion = "1.0"

// maxExportLimit is the maximum number of decisions exported at once.
const maxExportLimit = 1000000

func exportJSON(ctx context.Context, s Store, writer io.Writer) error {
	all, err := s.List(ctx, "", maxExportLimit, 0)
	if err != nil {
		return fmt.Errorf("failed to list decisions: %w", err)
	}
	if all == nil {
		all = []*Decision{}
	}

	export := &Export{
		Version:    ExportVersion,
		ExportedAt: time.Now(),
		Count:      len(all),
		Decisions:  all,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(export)
}

func importJSON(ctx context.Context, s Store, reader io.Reader) (imported int, skipped int, err error) {
	var export Export
	if err := json.NewDecoder(reader).Decode(&export); err != nil {
		return 0, 0, fmt.Errorf("failed to decode JSON: %w", err)
	}

	for _, d := range export.Decisions {
		d.Normalize()
		if err := d.Validate(); err != nil {
			skipped++
			continue
		}

		existing, err := s.Get(ctx, d.PatientID, d.NormalizedName, d.ChangeType)
		if err != nil {
			return imported, skipped, fmt.Errorf("failed to check existing: %w", err)
		}
		if existing != nil {
			skipped++
			continue
		}

		d.ID = 0
		if err := s.Save(ctx, d); err != nil {
			return imported, skipped, fmt.Errorf("failed to save: %w", err)
		}
		imported++
	}

	return imported, skipped, nil
}
