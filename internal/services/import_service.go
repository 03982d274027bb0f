package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"asetmon/internal/amqp"
	"asetmon/internal/core"
	"asetmon/internal/importer"
	applog "asetmon/internal/log"
	"asetmon/internal/sheets"
)

var (
	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "asetmon_imports_total",
		Help: "Import attempts by stage and result",
	}, []string{"stage", "result"})

	importRows = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "asetmon_import_rows",
		Help:    "Rows written per committed import",
		Buckets: prometheus.ExponentialBuckets(10, 4, 7),
	})

	importWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "asetmon_import_warnings_total",
		Help: "Cell coercion warnings across committed imports",
	})
)

// AssetReplacer swaps the whole asset table in one transaction.
type AssetReplacer interface {
	ReplaceAssets(ctx context.Context, assets []core.Asset, rec core.ImportRecord) error
}

// EventPublisher announces committed imports.
type EventPublisher interface {
	PublishAssetsImported(ctx context.Context, msg *amqp.AssetsImportedMessage) error
}

// Invalidator drops cached reads after the asset table changes.
type Invalidator interface {
	Invalidate()
}

// ImportService parses spreadsheets and commits them as a full replace.
type ImportService struct {
	store       AssetReplacer
	publisher   EventPublisher
	invalidator Invalidator
	logger      *applog.Logger
	structured  *applog.StructuredLogger
	now         func() time.Time
}

func NewImportService(store AssetReplacer, invalidator Invalidator, logger *applog.Logger) *ImportService {
	l := logger.WithComponent(applog.ComponentImport)
	return &ImportService{
		store:       store,
		invalidator: invalidator,
		logger:      l,
		structured:  applog.NewStructuredLogger(l),
		now:         time.Now,
	}
}

// WithPublisher enables import events. Publishing stays best effort.
func (s *ImportService) WithPublisher(p EventPublisher) *ImportService {
	s.publisher = p
	return s
}

// Preview reads src and parses it without touching the store.
func (s *ImportService) Preview(ctx context.Context, src sheets.RowSource) (*importer.Batch, error) {
	rows, err := src.ReadRows(ctx)
	if err != nil {
		importsTotal.WithLabelValues("preview", "unreadable").Inc()
		return nil, err
	}
	batch, err := importer.Parse(rows, s.now())
	if err != nil {
		importsTotal.WithLabelValues("preview", "invalid").Inc()
		return nil, err
	}
	importsTotal.WithLabelValues("preview", "ok").Inc()
	s.logger.DebugContext(ctx, "Parsed spreadsheet",
		applog.FieldSource, sheets.SourceName(src, "upload"),
		applog.FieldRows, len(batch.Assets),
		applog.FieldWarnings, len(batch.Warnings))
	return batch, nil
}

// Commit replaces every stored asset with batch. On failure the previous
// data is left untouched.
func (s *ImportService) Commit(ctx context.Context, batch *importer.Batch, source string, actor core.Identity) (core.ImportRecord, error) {
	rec := core.ImportRecord{
		ID:         uuid.NewString(),
		Rows:       len(batch.Assets),
		Warnings:   len(batch.Warnings),
		Source:     source,
		ImportedBy: actor.Username,
		ImportedAt: s.now().UTC(),
	}

	if err := s.store.ReplaceAssets(ctx, batch.Assets, rec); err != nil {
		importsTotal.WithLabelValues("commit", "error").Inc()
		return core.ImportRecord{}, fmt.Errorf("replace assets: %w", err)
	}
	importsTotal.WithLabelValues("commit", "ok").Inc()
	importRows.Observe(float64(rec.Rows))
	importWarnings.Add(float64(rec.Warnings))

	if s.invalidator != nil {
		s.invalidator.Invalidate()
	}
	s.structured.LogImportCommitted(ctx, rec.ID, rec.Rows, rec.Warnings, rec.Source, rec.ImportedBy)

	if s.publisher != nil {
		msg := amqp.NewAssetsImportedMessage(rec.ID, rec.Rows, rec.Warnings, batch.TotalValue(), rec.Source, rec.ImportedBy)
		if err := s.publisher.PublishAssetsImported(ctx, msg); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish import event",
				applog.FieldImportID, rec.ID, applog.FieldError, err)
		}
	}
	return rec, nil
}
