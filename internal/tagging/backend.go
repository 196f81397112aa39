package tagging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/joseph-ayodele/doc-ingest/constants"
	"github.com/joseph-ayodele/doc-ingest/internal/common"
	"github.com/joseph-ayodele/doc-ingest/internal/remote"
	"github.com/joseph-ayodele/doc-ingest/internal/schema"
)

// Backend produces raw tag suggestions for a serialized canonical record.
type Backend interface {
	Tag(ctx context.Context, docType constants.DocumentType, payload []byte) ([]string, error)
}

func tagListSchema() map[string]any {
	list := map[string]any{
		"type":  "array",
		"items": map[string]any{"type": "string"},
	}
	return map[string]any{
		"oneOf": []any{
			list,
			map[string]any{
				"type":       "object",
				"properties": map[string]any{"tags": list},
				"required":   []string{"tags"},
			},
		},
	}
}

var tagSchema = schema.MustCompile("tags.json", tagListSchema())

// ParseTags accepts either a JSON array of strings or {"tags": [...]}.
func ParseTags(raw []byte) ([]string, error) {
	if err := schema.Validate(tagSchema, raw); err != nil {
		return nil, common.NewAppError(common.CodeTagging, "malformed tag answer", fmt.Errorf("%w: %w", common.ErrTagging, err))
	}
	trimmed := strings.TrimSpace(string(raw))
	if strings.HasPrefix(trimmed, "[") {
		var tags []string
		if err := json.Unmarshal(raw, &tags); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrTagging, err)
		}
		return tags, nil
	}
	var obj struct {
		Tags []string `json:"tags"`
	}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrTagging, err)
	}
	return obj.Tags, nil
}

// RemoteBackend posts the record to a tagging service at
// /tag/invoice or /tag/receipt.
type RemoteBackend struct {
	client *remote.Client
}

func NewRemoteBackend(client *remote.Client) *RemoteBackend {
	return &RemoteBackend{client: client}
}

func (b *RemoteBackend) Tag(ctx context.Context, docType constants.DocumentType, payload []byte) ([]string, error) {
	path := "/tag/receipt"
	if docType == constants.Invoice {
		path = "/tag/invoice"
	}
	var raw json.RawMessage
	if err := b.client.PostJSON(ctx, path, json.RawMessage(payload), &raw); err != nil {
		return nil, err
	}
	return ParseTags(raw)
}
