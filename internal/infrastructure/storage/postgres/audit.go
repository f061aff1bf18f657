package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/klauspost/compress/zstd"

	appctx "supplyhub/internal/core/context"
	"supplyhub/internal/core/id"
	"supplyhub/internal/domain/events"
)

// CompressionAlgo specifies the compression algorithm used.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// DefaultCompressThreshold is the payload size above which changes are
// stored zstd-compressed.
const DefaultCompressThreshold = 4 * 1024

// AuditEntry represents a single audit log entry.
type AuditEntry struct {
	ID                id.ID           `db:"id" json:"id"`
	EntityType        string          `db:"entity_type" json:"entity_type"`
	EntityID          string          `db:"entity_id" json:"entity_id"`
	Action            string          `db:"action" json:"action"`
	Actor             string          `db:"actor" json:"actor"`
	RequestID         string          `db:"request_id" json:"request_id,omitempty"`
	Changes           json.RawMessage `db:"changes" json:"changes,omitempty"`
	ChangesCompressed []byte          `db:"changes_compressed" json:"-"`
	CompressionAlgo   CompressionAlgo `db:"compression_algo" json:"-"`
	CreatedAt         time.Time       `db:"created_at" json:"created_at"`
}

var auditColumns = Columns[AuditEntry]()

// AuditTrail keeps every recorded domain event in sys_audit. Large
// payloads (orders with many lines) are compressed. It implements
// events.Recorder.
type AuditTrail struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

var _ events.Recorder = (*AuditTrail)(nil)

// NewAuditTrail creates a new audit trail.
func NewAuditTrail(txManager *TxManager) (*AuditTrail, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}

	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}

	return &AuditTrail{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: DefaultCompressThreshold,
	}, nil
}

// Record writes one audit entry per event.
func (a *AuditTrail) Record(ctx context.Context, evts ...events.Event) error {
	for _, e := range evts {
		changes, err := e.PayloadJSON()
		if err != nil {
			return fmt.Errorf("marshal changes: %w", err)
		}

		entry := AuditEntry{
			ID:         id.New(),
			EntityType: e.AggregateType,
			EntityID:   e.AggregateID,
			Action:     string(e.Type),
			Actor:      appctx.GetActorName(ctx),
			RequestID:  appctx.GetRequestID(ctx),
			Changes:    changes,
			CreatedAt:  e.OccurredAt,
		}
		if err := a.Log(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// Log inserts an entry, compressing large changes.
func (a *AuditTrail) Log(ctx context.Context, entry AuditEntry) error {
	if id.IsNil(entry.ID) {
		entry.ID = id.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	a.compress(&entry)

	sql, args, err := builder().Insert("sys_audit").SetMap(StructToMap(entry)).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := a.txManager.GetQuerier(ctx).Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// History returns the audit entries of one entity, newest first.
func (a *AuditTrail) History(ctx context.Context, entityType, entityID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}

	sql, args, err := builder().
		Select(auditColumns...).
		From("sys_audit").
		Where("entity_type = ? AND entity_id = ?", entityType, entityID).
		OrderBy("created_at DESC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var entries []AuditEntry
	if err := pgxscan.Select(ctx, a.txManager.GetQuerier(ctx), &entries, sql, args...); err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	for i := range entries {
		if err := a.decompress(&entries[i]); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (a *AuditTrail) compress(entry *AuditEntry) {
	entry.CompressionAlgo = CompressionNone
	if len(entry.Changes) <= a.compressThreshold {
		return
	}
	entry.ChangesCompressed = a.encoder.EncodeAll(entry.Changes, nil)
	entry.Changes = nil
	entry.CompressionAlgo = CompressionZstd
}

func (a *AuditTrail) decompress(entry *AuditEntry) error {
	if entry.CompressionAlgo != CompressionZstd || len(entry.ChangesCompressed) == 0 {
		return nil
	}
	raw, err := a.decoder.DecodeAll(entry.ChangesCompressed, nil)
	if err != nil {
		return fmt.Errorf("decompress changes: %w", err)
	}
	entry.Changes = raw
	entry.ChangesCompressed = nil
	return nil
}
