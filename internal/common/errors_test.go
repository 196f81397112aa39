package common

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		permanent bool
		code      codes.Code
	}{
		{
			name:      "service unavailable",
			err:       NewAppError(CodeOCRUnavailable, "ocr down", ErrServiceUnavailable),
			transient: true,
			code:      codes.Unavailable,
		},
		{
			name:      "canceled run",
			err:       NewAppError(CodeRunCanceled, "canceled", fmt.Errorf("%w: %w", ErrCanceled, context.Canceled)),
			transient: true,
			code:      codes.Canceled,
		},
		{
			name:      "deadline",
			err:       fmt.Errorf("call: %w", context.DeadlineExceeded),
			transient: true,
			code:      codes.Unavailable,
		},
		{
			name:      "unreadable",
			err:       NewAppError(CodeDocumentUnreadable, "blurry", ErrUnprocessable),
			permanent: true,
			code:      codes.FailedPrecondition,
		},
		{
			name:      "reconciliation",
			err:       NewAppError(CodeReconciliation, "no gross", ErrReconciliation),
			permanent: true,
			code:      codes.FailedPrecondition,
		},
		{
			name:      "validation",
			err:       fmt.Errorf("%w: content is required", ErrValidation),
			permanent: true,
			code:      codes.InvalidArgument,
		},
		{
			name: "not found",
			err:  fmt.Errorf("record x: %w", ErrNotFound),
			code: codes.NotFound,
		},
		{
			name: "unknown",
			err:  errors.New("boom"),
			code: codes.Internal,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.transient, IsTransient(tt.err))
			assert.Equal(t, tt.permanent, IsPermanent(tt.err))
			assert.Equal(t, tt.code, status.Code(ToStatus(tt.err)))
		})
	}
}

func TestToStatus_PassesThroughStatusErrors(t *testing.T) {
	err := NotFoundError("gone")
	assert.Same(t, err, ToStatus(err))
	assert.NoError(t, ToStatus(nil))
}

func TestCodeOf(t *testing.T) {
	err := WrapError(NewAppError(CodeTagging, "bad labels", ErrTagging), "tag")
	assert.Equal(t, CodeTagging, CodeOf(err))
	assert.ErrorIs(t, err, ErrTagging)
	assert.Empty(t, CodeOf(errors.New("plain")))
	assert.NoError(t, WrapError(nil, "noop"))
}
