package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// JobID is the provider's job identifier. Some provider versions send it as
// a bare number, newer ones as an opaque string; both decode to the string
// form the ledger stores.
type JobID string

func (j *JobID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*j = JobID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*j = JobID(n.String())
	return nil
}

func (j JobID) String() string {
	return string(j)
}

// Callback is the provider's result notification.
type Callback struct {
	ID      JobID           `json:"id"`
	Type    string          `json:"type,omitempty"`
	To      string          `json:"to,omitempty"`
	Ref     string          `json:"ref"`
	Content []CallbackField `json:"content,omitempty"`
}

type CallbackField struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

const callbackSchemaJSON = `{
	"type": "object",
	"required": ["id", "ref"],
	"properties": {
		"id": {"type": ["string", "integer"]},
		"type": {"type": "string"},
		"to": {"type": "string"},
		"ref": {"type": "string", "minLength": 3},
		"content": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["key", "value"],
				"properties": {
					"key": {"type": "string"},
					"value": {"type": "string"}
				}
			}
		}
	}
}`

func compileCallbackSchema() *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(callbackSchemaJSON))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource("callback.json", doc); err != nil {
		panic(err)
	}
	return c.MustCompile("callback.json")
}

// Per-kind resource allow-lists. An unlisted combination is rejected
// deterministically instead of falling through to some other handler.
var (
	translateResources = map[string]bool{
		"page": true, "post": true, "post_tag": true, "category": true,
		"product": true, "product_cat": true, "product_tag": true,
	}
	generateContentResources = map[string]bool{
		"post": true, "page": true, "product": true, "category": true, "product_cat": true,
	}
	generateSEOResources = map[string]bool{
		"post": true, "page": true, "product": true, "category": true,
		"product_cat": true, "post_tag": true, "product_tag": true,
	}
	postLikeResources = map[string]bool{"post": true, "page": true, "product": true}
)

// Dispatcher validates inbound callbacks and routes them to the matching
// handler. Every failure is converted into a structured ack at this
// boundary; nothing propagates to the provider as an unhandled fault.
type Dispatcher struct {
	store  ContentStore
	ledger *Ledger
	locks  *LockManager
	events *EventHub
	schema *jsonschema.Schema

	lockTimeout   time.Duration
	publishStatus string
}

func NewDispatcher(store ContentStore, ledger *Ledger, locks *LockManager, events *EventHub) *Dispatcher {
	return &Dispatcher{
		store:         store,
		ledger:        ledger,
		locks:         locks,
		events:        events,
		schema:        compileCallbackSchema(),
		lockTimeout:   12 * time.Second,
		publishStatus: entityStatusPublish,
	}
}

// Dispatch runs one callback through validate -> route -> handle. The
// returned error classifies the failure (ValidationError, ErrRequestNotFound,
// ErrLockTimeout, StoreWriteError); nil means handled and safe to ack.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) error {
	ctx, span := tracer.Start(ctx, "dispatch")
	defer span.End()

	start := time.Now()

	cb, kind, resource, resourceID, err := d.validate(body)
	if err != nil {
		callbackHandleHist.WithLabelValues("invalid", "rejected").Observe(float64(time.Since(start).Milliseconds()))
		return err
	}

	err = d.route(ctx, cb, kind, resource, resourceID)

	outcome := "handled"
	if err != nil {
		outcome = "failed"
	}
	callbackHandleHist.WithLabelValues(kind, outcome).Observe(float64(time.Since(start).Milliseconds()))

	if err != nil {
		slog.Error("callback handling failed", "kind", kind, "ref", cb.Ref, "job", cb.ID.String(), "error", err)
		return err
	}

	slog.Info("callback handled", "kind", kind, "ref", cb.Ref, "job", cb.ID.String(), "lang", cb.To)
	return nil
}

func (d *Dispatcher) validate(body []byte) (*Callback, string, string, uint, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		return nil, "", "", 0, validationErrorf("invalid callback payload: %s", err)
	}
	if err := d.schema.Validate(inst); err != nil {
		return nil, "", "", 0, validationErrorf("invalid callback payload: %s", err)
	}

	var cb Callback
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, "", "", 0, validationErrorf("invalid callback payload: %s", err)
	}
	if cb.ID.String() == "" {
		return nil, "", "", 0, validationErrorf("missing provider job id")
	}

	resource, resourceID, err := parseRef(cb.Ref)
	if err != nil {
		return nil, "", "", 0, &ValidationError{Reason: err.Error()}
	}

	kind := strings.ToLower(strings.TrimSpace(cb.Type))
	switch kind {
	case "":
		// Old provider versions omit the type on translation callbacks.
		kind = JobKindTranslate
	case "metatags":
		kind = JobKindGenerateSEO
	case JobKindTranslate, JobKindGenerateContent, JobKindGenerateSEO:
	default:
		return nil, "", "", 0, validationErrorf("unsupported callback type %q", cb.Type)
	}

	allowed := map[string]map[string]bool{
		JobKindTranslate:       translateResources,
		JobKindGenerateContent: generateContentResources,
		JobKindGenerateSEO:     generateSEOResources,
	}[kind]
	if !allowed[resource] {
		return nil, "", "", 0, validationErrorf("unsupported resource type %q for %s", resource, kind)
	}

	return &cb, kind, resource, resourceID, nil
}

func (d *Dispatcher) route(ctx context.Context, cb *Callback, kind, resource string, resourceID uint) error {
	switch kind {
	case JobKindTranslate:
		return d.handleTranslate(ctx, cb, resource, resourceID)
	case JobKindGenerateContent:
		return d.handleGenerateContent(ctx, cb, resource, resourceID)
	case JobKindGenerateSEO:
		return d.handleGenerateSEO(ctx, cb, resource, resourceID)
	default:
		return fmt.Errorf("no handler for kind %q", kind)
	}
}
