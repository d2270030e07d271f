package extract

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/akolanti/TenantRAG/internal/config"
	"github.com/akolanti/TenantRAG/pkg/errors_i"
	"github.com/akolanti/TenantRAG/pkg/logger_i"
	"github.com/gabriel-vasile/mimetype"
)

const (
	mimePDF         = "application/pdf"
	mimeOctetStream = "application/octet-stream"
	mimeDOCX        = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimeODT         = "application/vnd.oasis.opendocument.text"
	mimeRTF         = "text/rtf"
	mimeRTFApp      = "application/rtf"

	// share of printable runes below which bytes are not treated as text
	minPrintableRatio = 0.9
)

type Extractor struct {
	tempDir     string
	pageTimeout time.Duration
	logger      *logger_i.Logger
}

func NewExtractor(tempDir string) *Extractor {
	if tempDir == "" {
		tempDir = config.TempDir
	}
	return &Extractor{
		tempDir:     tempDir,
		pageTimeout: config.PDFPageTimeout,
		logger:      logger_i.NewLogger("Text Extractor"),
	}
}

// Extract returns the plain text of data. mimeType may be empty, in which case it is sniffed.
func (e *Extractor) Extract(ctx context.Context, data []byte, mimeType string) (string, error) {
	log := e.logger.FromContext(ctx)
	kind := ResolveMime(data, mimeType)
	log.Debug("extracting text", "mimeType", kind, "bytes", len(data))

	var (
		text string
		err  error
	)
	switch {
	case kind == mimePDF:
		text, err = e.extractPDF(ctx, data)
	case isOffice(kind):
		text, err = e.extractOffice(ctx, data, kind)
	case isPlainText(kind):
		text = decodeUTF8(data)
	default:
		if !looksLikeText(data) {
			return "", errors_i.New(errors_i.CodeExtractionUnsupportedFormat, "unsupported document format",
				errors_i.Field("mime_type", kind))
		}
		text = decodeUTF8(data)
	}
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors_i.New(errors_i.CodeExtractionNoExtractableText, "document contains no extractable text",
			errors_i.Field("mime_type", kind))
	}
	log.Debug("extracted text", "mimeType", kind, "chars", utf8.RuneCountInString(text))
	return text, nil
}

// ResolveMime keeps a specific caller-supplied type and sniffs otherwise.
func ResolveMime(data []byte, mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	if mimeType != "" && mimeType != mimeOctetStream {
		return mimeType
	}
	detected := mimetype.Detect(data)
	if detected.Is("text/plain") {
		return "text/plain"
	}
	kind := detected.String()
	if i := strings.IndexByte(kind, ';'); i >= 0 {
		kind = kind[:i]
	}
	return kind
}

func isPlainText(kind string) bool {
	if strings.HasPrefix(kind, "text/") {
		return true
	}
	switch kind {
	case "application/json", "application/xml", "application/csv", "application/x-ndjson":
		return true
	}
	return strings.HasSuffix(kind, "+json") || strings.HasSuffix(kind, "+xml")
}

func isOffice(kind string) bool {
	switch kind {
	case mimeDOCX, mimeODT, mimeRTF, mimeRTFApp:
		return true
	}
	return false
}

func decodeUTF8(data []byte) string {
	return strings.ToValidUTF8(string(data), string(utf8.RuneError))
}

func looksLikeText(data []byte) bool {
	if len(data) == 0 {
		return true
	}
	total, printable := 0, 0
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		total++
		if r != utf8.RuneError && (unicode.IsPrint(r) || unicode.IsSpace(r)) {
			printable++
		}
	}
	return float64(printable)/float64(total) >= minPrintableRatio
}
