package main

import (
	"context"
	"strings"
	"time"
)

// Field key -> meta key maps for SEO callbacks. Term-like resources take no
// keywords, matching what their store surface supports.
var (
	postSEOFieldMeta = map[string]string{
		"meta_title":       "seo_title",
		"meta_description": "seo_description",
		"meta_keywords":    "seo_keywords",
		"title":            "seo_title",
		"description":      "seo_description",
		"keywords":         "seo_keywords",
	}
	termSEOFieldMeta = map[string]string{
		"meta_title":       "seo_title",
		"meta_description": "seo_description",
		"title":            "seo_title",
		"description":      "seo_description",
	}
)

// handleGenerateContent writes a generated description onto the entity
// itself. No locking: this never touches a shared translation group.
func (d *Dispatcher) handleGenerateContent(ctx context.Context, cb *Callback, resource string, resourceID uint) error {
	jobID := cb.ID.String()

	row, err := d.ledger.FindPending(ctx, resource, resourceID, "", JobKindGenerateContent, jobID)
	if err != nil {
		return err
	}

	description := ""
	for _, f := range cb.Content {
		if f.Key == "description" || f.Key == "content" {
			description = f.Value
			break
		}
	}
	if description == "" && len(cb.Content) > 0 {
		description = cb.Content[0].Value
	}

	if description != "" {
		e, err := d.store.GetEntity(ctx, resourceID)
		if err != nil {
			return err
		}
		if e == nil {
			return validationErrorf("entity %s/%d not found", resource, resourceID)
		}

		e.Body = description
		if _, err := d.store.CreateOrUpdateEntity(ctx, e); err != nil {
			return &StoreWriteError{Op: "update body", Err: err}
		}
	}

	if err := d.ledger.MarkCompleted(ctx, row.ID, 0); err != nil {
		return err
	}

	d.events.Publish(RequestEvent{
		RequestID:  row.ID,
		JobID:      jobID,
		Resource:   resource,
		ResourceID: resourceID,
		Kind:       JobKindGenerateContent,
		Status:     "completed",
		At:         time.Now(),
	})

	return nil
}

// handleGenerateSEO maps the returned fields through the per-shape meta maps
// and writes them as entity meta. Unknown keys are skipped.
func (d *Dispatcher) handleGenerateSEO(ctx context.Context, cb *Callback, resource string, resourceID uint) error {
	jobID := cb.ID.String()

	row, err := d.ledger.FindPending(ctx, resource, resourceID, "", JobKindGenerateSEO, jobID)
	if err != nil {
		return err
	}

	fieldMeta := termSEOFieldMeta
	if postLikeResources[resource] {
		fieldMeta = postSEOFieldMeta
	}

	for _, f := range cb.Content {
		metaKey, ok := fieldMeta[strings.ToLower(strings.TrimSpace(f.Key))]
		if !ok {
			continue
		}
		if err := d.store.SetMeta(ctx, resourceID, metaKey, f.Value); err != nil {
			return &StoreWriteError{Op: "set seo meta", Err: err}
		}
	}

	if err := d.ledger.MarkCompleted(ctx, row.ID, 0); err != nil {
		return err
	}

	d.events.Publish(RequestEvent{
		RequestID:  row.ID,
		JobID:      jobID,
		Resource:   resource,
		ResourceID: resourceID,
		Kind:       JobKindGenerateSEO,
		Status:     "completed",
		At:         time.Now(),
	})

	return nil
}
