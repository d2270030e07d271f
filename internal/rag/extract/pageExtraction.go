package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/dslipak/pdf"
	"github.com/lu4p/cat"
)

func (e *Extractor) extractPDF(ctx context.Context, data []byte) (text string, err error) {
	log := e.logger.FromContext(ctx)

	// the reader panics on some malformed inputs
	defer func() {
		if r := recover(); r != nil {
			text = ""
			err = errors_i.New(errors_i.CodeExtractionCorruptDocument, "pdf could not be parsed",
				errors_i.Field("panic", fmt.Sprint(r)))
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		log.Error("failed opening of pdf file", "error", err)
		return "", classifyPDFError(err)
	}

	numPages := reader.NumPage()
	log.Debug("extractPDF", "number of pages", numPages)

	pages := make([]string, 0, numPages)
	for i := 1; i <= numPages; i++ {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		page := reader.Page(i)
		if page.V.IsNull() {
			log.Debug("extractPDF", "page value is null", i)
			continue
		}

		content, err := e.protectExtract(page)
		if err != nil {
			log.Warn("skipping unreadable pdf page", "page", i, "error", err)
			continue
		}
		content = strings.Join(strings.Fields(content), " ")
		if content != "" {
			pages = append(pages, content)
		}
	}
	return strings.Join(pages, "\n"), nil
}

func (e *Extractor) protectExtract(page pdf.Page) (string, error) {
	type result struct {
		content string
		err     error
	}
	resChan := make(chan result, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				resChan <- result{err: fmt.Errorf("page extraction panic: %v", r)}
			}
		}()
		content, err := page.GetPlainText(nil)
		resChan <- result{content, err}
	}()

	timer := time.NewTimer(e.pageTimeout)
	defer timer.Stop()
	select {
	case r := <-resChan:
		return r.content, r.err
	case <-timer.C:
		return "", errors.New("page extraction timeout")
	}
}

func classifyPDFError(err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "encrypt") || strings.Contains(msg, "password") {
		return errors_i.Wrap(err, errors_i.CodeExtractionEncryptedDocument, "pdf is password protected")
	}
	return errors_i.Wrap(err, errors_i.CodeExtractionCorruptDocument, "invalid or corrupted pdf")
}

// extractOffice reads .docx, .odt and .rtf. The parser only reads from disk,
// so the bytes go through a temp file that is removed afterwards.
func (e *Extractor) extractOffice(ctx context.Context, data []byte, kind string) (string, error) {
	log := e.logger.FromContext(ctx)

	if err := os.MkdirAll(e.tempDir, 0o755); err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	tmp, err := os.CreateTemp(e.tempDir, "extract-*"+officeExtension(kind))
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if rmErr := os.Remove(tmp.Name()); rmErr != nil {
			log.Warn("failed removing temp file", "path", tmp.Name(), "error", rmErr)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}

	text, err := cat.File(filepath.Clean(tmp.Name()))
	if err != nil {
		log.Error("Error extracting content from doc", "error", err)
		return "", errors_i.Wrap(err, errors_i.CodeExtractionCorruptDocument, "failed to read office document",
			errors_i.Field("mime_type", kind))
	}
	return text, nil
}

func officeExtension(kind string) string {
	switch kind {
	case mimeDOCX:
		return ".docx"
	case mimeODT:
		return ".odt"
	default:
		return ".rtf"
	}
}
