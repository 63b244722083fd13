// -----------------------------------------------------------------------
// Run Service - Ring buffer of recent runs plus persistent history
// -----------------------------------------------------------------------

package runs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/scriba/internal/common"
	"github.com/ternarybob/scriba/internal/interfaces"
	"github.com/ternarybob/scriba/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// ringSize bounds the in-memory run buffer. Older finished runs remain
// readable from the persistent store.
const ringSize = 100

// Service owns run records. Producers append and mutate through the
// methods below; the records themselves never feed back into control flow.
type Service struct {
	mu     sync.RWMutex
	ring   []*models.RunRecord // Newest last; bounded by ringSize
	byID   map[string]*models.RunRecord
	store  *badgerhold.Store // Optional; nil = memory only
	events interfaces.EventService
	logger arbor.ILogger
}

// NewService creates a run service. The store may be nil, in which case
// history does not survive restarts (used by tests).
func NewService(store *badgerhold.Store, eventService interfaces.EventService, logger arbor.ILogger) interfaces.RunService {
	return &Service{
		ring:   make([]*models.RunRecord, 0, ringSize),
		byID:   make(map[string]*models.RunRecord),
		store:  store,
		events: eventService,
		logger: logger,
	}
}

// StartRun creates a running record for a dispatched job.
func (s *Service) StartRun(job *models.Job, workerKey string) *models.RunRecord {
	record := &models.RunRecord{
		ID:        common.NewRunID(),
		JobRow:    job.Row,
		JobName:   job.Name,
		WorkerKey: workerKey,
		Status:    models.RunStatusRunning,
		StartedAt: time.Now(),
	}

	s.mu.Lock()
	s.ring = append(s.ring, record)
	if len(s.ring) > ringSize {
		evicted := s.ring[0]
		s.ring = s.ring[1:]
		delete(s.byID, evicted.ID)
	}
	s.byID[record.ID] = record
	s.mu.Unlock()

	s.publish(record)
	return record
}

// SetStage advances the record's current stage.
func (s *Service) SetStage(runID, stage string) {
	s.mu.Lock()
	record, ok := s.byID[runID]
	if ok {
		record.Stage = stage
	}
	s.mu.Unlock()

	if ok {
		s.publish(record)
	}
}

// RecordStage appends one completed stage result.
func (s *Service) RecordStage(runID string, result models.StageResult) {
	s.mu.Lock()
	record, ok := s.byID[runID]
	if ok {
		record.Stages = append(record.Stages, result)
	}
	s.mu.Unlock()
}

// CompleteRun finalizes the record and persists it.
func (s *Service) CompleteRun(runID string, status models.RunStatus, errText, screenshot, dump string) {
	s.mu.Lock()
	record, ok := s.byID[runID]
	if ok {
		record.Status = status
		record.Error = errText
		record.Screenshot = screenshot
		record.FailureDump = dump
		record.EndedAt = time.Now()
	}
	s.mu.Unlock()

	if !ok {
		s.logger.Warn().Str("run_id", runID).Msg("CompleteRun for unknown run")
		return
	}

	if s.store != nil {
		if err := s.store.Upsert(record.ID, record); err != nil {
			s.logger.Warn().Err(err).Str("run_id", runID).Msg("Failed to persist run record")
		}
	}

	s.publish(record)
}

// GetRun returns one record by ID, checking the ring first, then the store.
func (s *Service) GetRun(runID string) (*models.RunRecord, bool) {
	s.mu.RLock()
	record, ok := s.byID[runID]
	s.mu.RUnlock()
	if ok {
		copied := *record
		return &copied, true
	}

	if s.store != nil {
		var stored models.RunRecord
		if err := s.store.Get(runID, &stored); err == nil {
			return &stored, true
		}
	}
	return nil, false
}

// ListRuns returns recent records newest first, merging the in-memory ring
// with persisted history.
func (s *Service) ListRuns(limit int) []models.RunRecord {
	if limit <= 0 {
		limit = ringSize
	}

	seen := make(map[string]bool)
	merged := make([]models.RunRecord, 0, limit)

	s.mu.RLock()
	for i := len(s.ring) - 1; i >= 0; i-- {
		record := *s.ring[i]
		merged = append(merged, record)
		seen[record.ID] = true
	}
	s.mu.RUnlock()

	if s.store != nil {
		var stored []models.RunRecord
		if err := s.store.Find(&stored, nil); err != nil {
			s.logger.Warn().Err(err).Msg("Failed to read persisted runs")
		} else {
			for _, record := range stored {
				if !seen[record.ID] {
					merged = append(merged, record)
				}
			}
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		return merged[i].StartedAt.After(merged[j].StartedAt)
	})

	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged
}

// Close is a no-op for the ring; the store is owned and closed by the
// storage layer.
func (s *Service) Close() error {
	return nil
}

func (s *Service) publish(record *models.RunRecord) {
	if s.events == nil {
		return
	}
	copied := *record
	s.events.Publish(context.Background(), interfaces.Event{
		Type:    interfaces.EventRunUpdated,
		Payload: copied,
	})
}
