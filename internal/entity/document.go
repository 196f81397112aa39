package entity

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
)

// RawDocument is an uploaded document as handed to the pipeline.
type RawDocument struct {
	ReferenceID string                 `json:"referenceId"`
	ContentType string                 `json:"contentType"`
	Type        constants.DocumentType `json:"documentType"`
	Content     []byte                 `json:"content"`
	// SourcePath is set by filesystem sources; informational only.
	SourcePath string `json:"sourcePath,omitempty"`
}

// Validate checks the document before any extractor sees it.
func (d RawDocument) Validate() error {
	v := common.NewValidator()
	v.Field("referenceId", d.ReferenceID, common.Required, common.MaxLength(256)).
		Field("content", d.Content, common.Required).
		Field("documentType", string(d.Type), common.OneOf(string(constants.Invoice), string(constants.Receipt)))
	if !constants.IsSupportedMIME(d.ContentType) {
		v.Field("contentType", d.ContentType, func(name string, value interface{}) *common.ValidationError {
			return &common.ValidationError{Field: name, Value: value, Message: "unsupported content type"}
		})
	}
	if err := v.Error(); err != nil {
		return common.NewAppError(common.CodeInvalidDocument, fmt.Sprintf("document %q rejected", d.ReferenceID), err)
	}
	return nil
}

// ContentHash returns the hex SHA-256 of the content.
func (d RawDocument) ContentHash() string {
	sum := sha256.Sum256(d.Content)
	return hex.EncodeToString(sum[:])
}

// MIME returns the normalized content type.
func (d RawDocument) MIME() string {
	return constants.NormalizeMIME(d.ContentType)
}
