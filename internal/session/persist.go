package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hydroedu/hydrosim/internal/infra/storage"
)

// Save writes the session's current snapshot to repo.
func (s *Store) Save(ctx context.Context, repo storage.SnapshotRepository, sess *Session) error {
	snap := sess.Engine.Snapshot()
	data, err := json.Marshal(snap)
	if err != nil {
		s.metrics.RecordSnapshotWrite(err)
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	err = repo.Upsert(ctx, storage.StoredSnapshot{
		SessionID: sess.ID,
		City:      snap.City,
		Month:     snap.Month,
		Crop:      snap.Crop,
		Day:       snap.Day,
		Health:    snap.Health,
		Language:  sess.Language,
		Data:      data,
		UpdatedAt: time.Now(),
	})
	s.metrics.RecordSnapshotWrite(err)
	return err
}

// SaveAll writes a snapshot of every live session. It keeps going past failures and
// returns the number written with the first error.
func (s *Store) SaveAll(ctx context.Context, repo storage.SnapshotRepository) (int, error) {
	var (
		written  int
		firstErr error
	)
	s.Each(func(sess *Session) {
		if err := s.Save(ctx, repo, sess); err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.Error(fmt.Sprintf("Snapshot backup failed for %s: %v", sess.ID, err))
			return
		}
		written++
	})
	return written, firstErr
}

// RunBackups saves every session each interval until ctx is cancelled.
func (s *Store) RunBackups(ctx context.Context, repo storage.SnapshotRepository, interval time.Duration) {
	if interval <= 0 {
		return
	}
	backupTicker := time.NewTicker(interval)
	defer backupTicker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-backupTicker.C:
			_, _ = s.SaveAll(ctx, repo)
		}
	}
}

// Load restores the stored snapshot for id into the directory. The language recorded
// with the snapshot is kept unless language is set.
func (s *Store) Load(ctx context.Context, repo storage.SnapshotRepository, id, language string) (*Session, error) {
	stored, err := repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = stored.Language
	}
	return s.Restore(id, stored.Data, language)
}
