package importer

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/Linh3694/frappe-erp-sub001/internal/domain"
	"github.com/Linh3694/frappe-erp-sub001/internal/repository"
	"github.com/Linh3694/frappe-erp-sub001/internal/tabular"
)

// defaultBatchSize splits a run into progress-reporting units; it has no
// effect on correctness.
const defaultBatchSize = 100

// Engine turns mapped rows into record-store writes, one row at a time, with
// per-row failure isolation: nothing a single row does can abort its batch.
type Engine struct {
	store     repository.RecordStore
	batchSize int
}

// NewEngine wires a batch upsert engine. A non-positive batchSize falls back
// to the default.
func NewEngine(store repository.RecordStore, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Engine{store: store, batchSize: batchSize}
}

// BatchSize reports the configured progress granularity.
func (e *Engine) BatchSize() int { return e.batchSize }

// BatchResult aggregates one batch's outcome.
type BatchResult struct {
	SuccessCount int
	ErrorCount   int
	Errors       []domain.RowError
}

// ProcessBatch handles one slice of rows. The campus id is the job's; a row
// carrying its own campus value overrides it. The candidate cache is shared
// across all batches of the run.
func (e *Engine) ProcessBatch(
	ctx context.Context,
	schema domain.TargetSchema,
	table tabular.Table,
	rows []tabular.Row,
	mapping map[string]string,
	campusID uuid.UUID,
	opts domain.ImportOptions,
	cache *CandidateCache,
) BatchResult {
	result := BatchResult{}
	for _, row := range rows {
		mapped := tabular.MapRow(table, row, mapping)
		if err := e.processRow(ctx, schema, mapped, campusID, opts, cache); err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, domain.RowError{
				RowNumber: row.Number,
				Data:      mapped,
				Message:   err.Error(),
			})
			continue
		}
		result.SuccessCount++
	}
	return result
}

func (e *Engine) processRow(
	ctx context.Context,
	schema domain.TargetSchema,
	mapped map[string]any,
	campusID uuid.UUID,
	opts domain.ImportOptions,
	cache *CandidateCache,
) (err error) {
	defer func() {
		// A panic while handling one row is that row's failure, not the
		// batch's.
		if rec := recover(); rec != nil {
			err = fmt.Errorf("row processing panicked: %v", rec)
		}
	}()

	rowCampus, err := resolveCampus(mapped, campusID)
	if err != nil {
		return err
	}

	payload := map[string]any{"campus_id": rowCampus.String()}

	// Special reference fields first: free text in, canonical id out.
	consumed := map[string]bool{"campus_id": true}
	for _, ref := range schema.ReferenceFields {
		consumed[ref.RowField] = true
		raw, _ := mapped[ref.RowField].(string)
		if raw == "" {
			continue
		}
		candidates, cacheErr := cache.Candidates(ctx, ref)
		if cacheErr != nil {
			return cacheErr
		}
		id, ok := Resolve(raw, candidates, ref.MinSubstringLen)
		if !ok {
			message := fmt.Sprintf("%q could not be resolved", raw)
			if suggestion := SuggestClosest(raw, candidates); suggestion != "" {
				message = fmt.Sprintf("%s (closest match: %q)", message, suggestion)
			}
			return domain.NewValidationError(ref.RowField, "%s", message)
		}
		payload[ref.TargetField] = id.String()
	}

	// Remaining schema-declared fields copy straight across; system fields
	// and anything the reference pass already handled stay out.
	for _, field := range schema.Fields {
		if consumed[field.Name] || schema.IsSystemField(field.Name) {
			continue
		}
		if value, ok := mapped[field.Name]; ok && value != nil {
			payload[field.Name] = value
		}
	}

	if err := validateRequired(schema, mapped, payload); err != nil {
		return err
	}

	if opts.UpdateIfExists {
		existing, found, lookupErr := e.findExisting(ctx, schema, rowCampus, payload)
		if lookupErr != nil {
			return lookupErr
		}
		if found {
			if opts.DryRun {
				return nil
			}
			return e.store.Update(ctx, existing.MergeFields(payload))
		}
	}

	if opts.DryRun {
		return nil
	}
	_, err = e.store.Create(ctx, domain.NewRecord(rowCampus, schema.Name, payload))
	return err
}

func resolveCampus(mapped map[string]any, fallback uuid.UUID) (uuid.UUID, error) {
	raw, _ := mapped["campus_id"].(string)
	if raw == "" {
		return fallback, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, domain.NewValidationError("campus_id", "%q is not a valid campus id", raw)
	}
	return id, nil
}

func validateRequired(schema domain.TargetSchema, mapped, payload map[string]any) error {
	for _, field := range schema.Fields {
		if !field.Required {
			continue
		}
		if value, ok := payload[field.Name]; ok && value != nil && value != "" {
			continue
		}
		// Reference row fields vanish from the payload when resolved; the
		// raw cell decides whether the requirement was met.
		if raw, ok := mapped[field.Name].(string); ok && raw != "" {
			if hasResolvedReference(schema, field.Name, payload) {
				continue
			}
		}
		return domain.NewValidationError(field.Name, "required field is missing")
	}
	return nil
}

func hasResolvedReference(schema domain.TargetSchema, rowField string, payload map[string]any) bool {
	for _, ref := range schema.ReferenceFields {
		if ref.RowField == rowField {
			_, ok := payload[ref.TargetField]
			return ok
		}
	}
	return false
}

// findExisting looks a row's record up by the schema's natural key. An
// incomplete natural key means "no match" rather than an error, so partial
// rows still insert.
func (e *Engine) findExisting(ctx context.Context, schema domain.TargetSchema, campusID uuid.UUID, payload map[string]any) (domain.Record, bool, error) {
	if len(schema.NaturalKey) == 0 {
		return domain.Record{}, false, nil
	}
	filter := make(map[string]any, len(schema.NaturalKey))
	for _, key := range schema.NaturalKey {
		value, ok := payload[key]
		if !ok || value == nil || value == "" {
			return domain.Record{}, false, nil
		}
		filter[key] = value
	}
	record, err := e.store.FindOne(ctx, schema.Name, campusID, filter)
	if err != nil {
		if isNotFound(err) {
			return domain.Record{}, false, nil
		}
		return domain.Record{}, false, err
	}
	return record, true, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
