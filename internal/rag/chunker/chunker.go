package chunker

import (
	"github.com/akolanti/TenantRAG/internal/domain/commonModels"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
)

// Chunk splits text into windows of at most size runes, each starting
// overlap runes before the previous one ended. Offsets are counted in runes,
// so a multi-byte character is never cut.
func Chunk(text string, size, overlap int) ([]string, error) {
	if err := Validate(size, overlap); err != nil {
		return nil, err
	}
	if text == "" {
		return nil, nil
	}

	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}, nil
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := min(start+size, len(runes))
		if end > start {
			chunks = append(chunks, string(runes[start:end]))
		}
		if end == len(runes) {
			break
		}
		start = max(end-overlap, start+1)
	}
	return chunks, nil
}

// ChunkWith resolves cfg against the defaults before chunking.
func ChunkWith(text string, cfg commonModels.ChunkConfig) ([]string, error) {
	cfg = cfg.Resolve(commonModels.ChunkConfig{})
	return Chunk(text, cfg.Size, cfg.Overlap)
}

func Validate(size, overlap int) error {
	if size <= 0 {
		return errors_i.New(errors_i.CodeValidationInvalidChunkConfig, "chunk size must be positive",
			errors_i.Field("size", size))
	}
	if overlap < 0 || overlap >= size {
		return errors_i.New(errors_i.CodeValidationInvalidChunkConfig, "chunk overlap must be in [0, size)",
			errors_i.Field("size", size), errors_i.Field("overlap", overlap))
	}
	return nil
}
