package vectorDB

import (
	"errors"
	"fmt"
	"slices"
	"strconv"

	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
)

// ChunkIndex is the stored index for the passage at position i.
func ChunkIndex(i int, p commonModels.PassageInput) int {
	if p.ChunkIndex != nil {
		return *p.ChunkIndex
	}
	return i
}

// PassageMetadata copies caller metadata without reserved keys and sets chunkIndex.
func PassageMetadata(chunkIndex int, meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta)+1)
	for k, v := range meta {
		out[k] = v
	}
	for _, k := range commonModels.ReservedMetadataKeys {
		delete(out, k)
	}
	out[commonModels.MetaChunkIndex] = chunkIndex
	return out
}

// MetadataInt reads an integer that may have come back from storage as a float, string or int.
func MetadataInt(meta map[string]any, key string) (int, bool) {
	switch v := meta[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func ValidatePassage(i int, p commonModels.PassageInput, dimension int) error {
	if len(p.Embedding) == 0 {
		return errors_i.New(errors_i.CodeValidationInvalidInput, "passage has no embedding", errors_i.Field("position", i))
	}
	if dimension > 0 && len(p.Embedding) != dimension {
		return errors_i.New(errors_i.CodeValidationInvalidInput,
			fmt.Sprintf("passage embedding has %d dimensions, store expects %d", len(p.Embedding), dimension),
			errors_i.Field("position", i))
	}
	return nil
}

func ValidateSearch(query []float32, limit, dimension int) error {
	if limit <= 0 {
		return errors_i.New(errors_i.CodeValidationInvalidInput, "search limit must be positive", errors_i.Field("limit", limit))
	}
	if len(query) == 0 {
		return errors_i.New(errors_i.CodeValidationEmptyInput, "query vector is empty")
	}
	if dimension > 0 && len(query) != dimension {
		return errors_i.New(errors_i.CodeValidationInvalidInput, "query vector has the wrong dimension",
			errors_i.Field("want", dimension), errors_i.Field("got", len(query)))
	}
	return nil
}

func ValidateDocumentId(documentId string) error {
	if documentId == "" {
		return errors_i.New(errors_i.CodeValidationInvalidInput, "document id is empty")
	}
	return nil
}

func NotProvisioned(h commonModels.StoreHandle) error {
	return errors_i.New(errors_i.CodeStoreNotProvisioned, "tenant store is not provisioned",
		errors_i.FieldTenant(h.TenantId), errors_i.Field("table", h.Table))
}

func IOFailure(err error, op string, h commonModels.StoreHandle) error {
	return errors_i.Wrap(err, errors_i.CodeStoreIOFailure, op+" failed",
		errors_i.FieldTenant(h.TenantId), errors_i.Field("table", h.Table))
}

// InsertError is returned by InsertMany when some passages were not stored.
// Rejected holds their positions in the input slice, ascending.
type InsertError struct {
	Rejected []int
	Err      error
}

func (e *InsertError) Error() string {
	return e.Err.Error()
}

func (e *InsertError) Unwrap() error {
	return e.Err
}

// Rejections collects per-passage failures during one InsertMany call.
type Rejections struct {
	positions []int
	errs      []error
}

func (r *Rejections) Add(position int, err error) {
	r.positions = append(r.positions, position)
	r.errs = append(r.errs, err)
}

// Err is nil when nothing was rejected.
func (r *Rejections) Err() error {
	if len(r.errs) == 0 {
		return nil
	}
	positions := slices.Clone(r.positions)
	slices.Sort(positions)
	return &InsertError{Rejected: positions, Err: errors_i.Join(r.errs...)}
}

// RejectedPositions returns the positions an InsertMany error reports as not stored.
// ok is false when err does not say which passages failed.
func RejectedPositions(err error) (positions []int, ok bool) {
	var insertErr *InsertError
	if !errors.As(err, &insertErr) {
		return nil, false
	}
	return insertErr.Rejected, true
}
