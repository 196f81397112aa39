package server

import (
	"context"
	"encoding/base64"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/doc-ingest/internal/entity"
)

// Client is a typed client for IngestionService.
type Client struct {
	cc grpc.ClientConnInterface
}

func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Submit uploads doc and waits for its record.
func (c *Client) Submit(ctx context.Context, doc entity.RawDocument, opts ...grpc.CallOption) (entity.CanonicalTransactionRecord, error) {
	out, err := c.invoke(ctx, MethodSubmit, map[string]any{
		"referenceId":  doc.ReferenceID,
		"contentType":  doc.ContentType,
		"documentType": string(doc.Type),
		"content":      base64.StdEncoding.EncodeToString(doc.Content),
	}, opts...)
	if err != nil {
		return entity.CanonicalTransactionRecord{}, err
	}
	return RecordFromStruct(out)
}

func (c *Client) Get(ctx context.Context, referenceID string, opts ...grpc.CallOption) (entity.CanonicalTransactionRecord, error) {
	out, err := c.invoke(ctx, MethodGet, map[string]any{"referenceId": referenceID}, opts...)
	if err != nil {
		return entity.CanonicalTransactionRecord{}, err
	}
	return RecordFromStruct(out)
}

func (c *Client) Cancel(ctx context.Context, referenceID string, opts ...grpc.CallOption) (bool, error) {
	out, err := c.invoke(ctx, MethodCancel, map[string]any{"referenceId": referenceID}, opts...)
	if err != nil {
		return false, err
	}
	return out.GetFields()["canceled"].GetBoolValue(), nil
}

// ExportRecords returns XLSX bytes; empty dates leave the window open.
func (c *Client) ExportRecords(ctx context.Context, fromDate, toDate string, opts ...grpc.CallOption) ([]byte, error) {
	out, err := c.invoke(ctx, MethodExport, map[string]any{"fromDate": fromDate, "toDate": toDate}, opts...)
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.DecodeString(out.GetFields()["xlsx"].GetStringValue())
}
