// internal/audit/indexer.go
// Package audit mirrors meeting status changes into Elasticsearch so case
// workers can search lifecycle history without touching the primary store.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"dialogmote-coordinator/internal/common/database"
	"dialogmote-coordinator/internal/common/logger"
	"dialogmote-coordinator/internal/models"
)

const statusChangeIndex = "dialogmote-status-changes"

// statusChangeDoc is the indexed shape of a StatusChange.
type statusChangeDoc struct {
	MeetingUUID string    `json:"meetingUuid"`
	Status      string    `json:"status"`
	Actor       string    `json:"actor"`
	ChangedAt   time.Time `json:"changedAt"`
	IndexedAt   time.Time `json:"indexedAt"`
}

// Indexer writes status-change documents to Elasticsearch. Indexing is best
// effort: the database row is the source of truth, so a failed index call is
// logged and dropped.
type Indexer struct {
	es  *database.ElasticsearchClient
	log logger.Logger
}

func NewIndexer(es *database.ElasticsearchClient, log logger.Logger) *Indexer {
	return &Indexer{
		es:  es,
		log: log.WithFields(map[string]interface{}{"component": "audit"}),
	}
}

// IndexStatusChange mirrors one status change. Called after the owning
// transaction committed.
func (i *Indexer) IndexStatusChange(ctx context.Context, meetingUUID string, change models.StatusChange) {
	doc := statusChangeDoc{
		MeetingUUID: meetingUUID,
		Status:      string(change.Status),
		Actor:       change.Actor,
		ChangedAt:   change.CreatedAt,
		IndexedAt:   time.Now().UTC(),
	}

	body, err := json.Marshal(doc)
	if err != nil {
		i.log.Warn("status change not indexed", map[string]interface{}{
			"meeting": meetingUUID,
			"error":   err.Error(),
		})
		return
	}

	es := i.es.Client
	res, err := es.Index(
		statusChangeIndex,
		strings.NewReader(string(body)),
		es.Index.WithDocumentID(fmt.Sprintf("%s-%d", meetingUUID, change.ID)),
		es.Index.WithContext(ctx),
	)
	if err != nil {
		i.log.Warn("status change not indexed", map[string]interface{}{
			"meeting": meetingUUID,
			"error":   err.Error(),
		})
		return
	}
	defer res.Body.Close()

	if res.IsError() {
		i.log.Warn("status change not indexed", map[string]interface{}{
			"meeting": meetingUUID,
			"status":  res.Status(),
		})
		return
	}

	i.log.Debug("status change indexed", map[string]interface{}{
		"meeting": meetingUUID,
		"status":  string(change.Status),
	})
}
