package constants

import (
	"fmt"
	"strings"
)

// DocumentType is the caller's hint about what kind of document was uploaded.
type DocumentType string

const (
	Invoice DocumentType = "INVOICE"
	Receipt DocumentType = "RECEIPT"
)

// ParseDocumentType accepts any casing and surrounding whitespace.
func ParseDocumentType(s string) (DocumentType, error) {
	switch DocumentType(strings.ToUpper(strings.TrimSpace(s))) {
	case Invoice:
		return Invoice, nil
	case Receipt:
		return Receipt, nil
	default:
		return "", fmt.Errorf("unknown document type %q", s)
	}
}

// Supported content types.
const (
	MIMEPDF     = "application/pdf"
	MIMEXML     = "application/xml"
	MIMETextXML = "text/xml"
	MIMEJPEG    = "image/jpeg"
	MIMEPNG     = "image/png"
	MIMETIFF    = "image/tiff"
)

// extToMIME holds the allowed file extensions for ingestion and their content type.
var extToMIME = map[string]string{
	"pdf":  MIMEPDF,
	"xml":  MIMEXML,
	"jpg":  MIMEJPEG,
	"jpeg": MIMEJPEG,
	"png":  MIMEPNG,
	"tif":  MIMETIFF,
	"tiff": MIMETIFF,
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// MIMEForExt maps a file extension to its content type; "" when unsupported.
func MIMEForExt(ext string) string {
	return extToMIME[NormalizeExt(ext)]
}

// NormalizeMIME strips parameters (e.g. "; charset=utf-8") and lowercases.
func NormalizeMIME(ct string) string {
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// IsSupportedMIME reports whether the pipeline accepts the content type at all.
func IsSupportedMIME(ct string) bool {
	ct = NormalizeMIME(ct)
	for _, v := range extToMIME {
		if v == ct {
			return true
		}
	}
	return ct == MIMETextXML
}

// CarriesEmbeddedInvoice reports whether the content type can hold a structured
// invoice payload (a PDF container or the bare XML itself).
func CarriesEmbeddedInvoice(ct string) bool {
	switch NormalizeMIME(ct) {
	case MIMEPDF, MIMEXML, MIMETextXML:
		return true
	}
	return false
}
