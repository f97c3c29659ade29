package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pickemslab/bracket-engine/storage"
)

// SnapshotPublisher writes the full bracket view to object storage after
// every committed mutation. Keys are timestamped and never overwritten, so
// the snapshot store doubles as an audit trail for result corrections.
type SnapshotPublisher struct {
	uploader storage.FileUploader
}

func NewSnapshotPublisher(uploader storage.FileUploader) *SnapshotPublisher {
	return &SnapshotPublisher{uploader: uploader}
}

func (p *SnapshotPublisher) Publish(ctx context.Context, view *BracketView, label string) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal bracket snapshot: %w", err)
	}

	key := fmt.Sprintf("tournaments/%d/snapshots/%d-%s.json",
		view.TournamentID, time.Now().UnixMilli(), label)

	if _, err := p.uploader.Upload(ctx, key, "application/json", bytes.NewReader(payload)); err != nil {
		return fmt.Errorf("failed to upload bracket snapshot %s: %w", key, err)
	}
	return nil
}
