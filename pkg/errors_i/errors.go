package errors_i

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is a dotted machine-readable error identifier. The first segment is the family.
type Code string

const (
	CodeValidationInvalidInput       Code = "validation.invalid_input"
	CodeValidationEmptyInput         Code = "validation.empty_input"
	CodeValidationInvalidChunkConfig Code = "validation.invalid_chunk_config"
	CodeValidationInvalidTenant      Code = "validation.invalid_tenant"

	CodeExtractionUnsupportedFormat Code = "extraction.unsupported_format"
	CodeExtractionNoExtractableText Code = "extraction.no_extractable_text"
	CodeExtractionEncryptedDocument Code = "extraction.encrypted_document"
	CodeExtractionCorruptDocument   Code = "extraction.corrupt_document"

	CodeEmbeddingInvalidCredentials Code = "embedding.invalid_credentials"
	CodeEmbeddingServiceUnavailable Code = "embedding.service_unavailable"
	CodeEmbeddingMalformedResponse  Code = "embedding.malformed_response"
	CodeEmbeddingProviderError      Code = "embedding.provider_error"

	CodeStoreNotProvisioned Code = "store.not_provisioned"
	CodeStoreIOFailure      Code = "store.io_failure"

	CodePipelineEmptyContent        Code = "pipeline.empty_content"
	CodePipelineAllEmbeddingsFailed Code = "pipeline.all_embeddings_failed"
	CodePipelineInvalidTransition   Code = "pipeline.invalid_transition"
	CodePipelineDocumentNotFound    Code = "pipeline.document_not_found"
	CodePipelineDocumentTimeout     Code = "pipeline.document_timeout"
)

// Family groups codes the way callers report them.
type Family string

const (
	FamilyValidation Family = "validation"
	FamilyExtraction Family = "extraction"
	FamilyEmbedding  Family = "embedding"
	FamilyStore      Family = "store"
	FamilyPipeline   Family = "pipeline"
	FamilyUnknown    Family = ""
)

type Attr struct {
	Key   string
	Value any
}

func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

func FieldTenant(value string) Attr {
	return Field("tenant_id", value)
}

func FieldDocument(value string) Attr {
	return Field("document_id", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

// Wrap attaches code to err. When err already carries a code, the inner code wins.
func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

// Reclassify returns a new error under code that keeps err's message and code as
// fields but not its chain, so the new code is the one callers observe.
func Reclassify(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}
	fields = append(fields, Field("cause", err.Error()))
	if inner := CodeOf(err); inner != "" {
		fields = append(fields, Field("cause_code", string(inner)))
	}
	return oops.Code(code).With(flatten(fields)...).Errorf("%s: %s", msg, err.Error())
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	switch c := oopsErr.Code().(type) {
	case Code:
		return c
	case string:
		return Code(c)
	case nil:
		return ""
	default:
		return Code(fmt.Sprintf("%v", c))
	}
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return oopsErr.Context()
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func FamilyOf(err error) Family {
	code := CodeOf(err)
	if code == "" {
		return FamilyUnknown
	}
	head, _, _ := strings.Cut(string(code), ".")
	return Family(head)
}

func IsValidation(err error) bool {
	return FamilyOf(err) == FamilyValidation
}

func IsNotProvisioned(err error) bool {
	return HasCode(err, CodeStoreNotProvisioned)
}

// IsTransient reports whether a retry could succeed.
func IsTransient(err error) bool {
	return HasCode(err, CodeEmbeddingServiceUnavailable)
}

// Join mirrors errors.Join so callers need a single errors import.
func Join(errs ...error) error {
	return stderrors.Join(errs...)
}

func flatten(fields []Attr) []any {
	if len(fields) == 0 {
		return nil
	}
	kv := make([]any, 0, len(fields)*2)
	for _, f := range fields {
		kv = append(kv, f.Key, f.Value)
	}
	return kv
}
