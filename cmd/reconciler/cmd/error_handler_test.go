package cmd

import (
	"errors"
	"testing"

	apperrors "lender-reconciliation-engine/pkg/errors"
)

func TestHandleErrorExitCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: 0,
		},
		{
			name: "import error",
			err:  apperrors.New(apperrors.CategoryImport, apperrors.CodeInvalidFormat, "bad csv"),
			want: 2,
		},
		{
			name: "validation error",
			err:  apperrors.New(apperrors.CategoryValidation, apperrors.CodeInvalidAmount, "bad amount"),
			want: 3,
		},
		{
			name: "configuration error",
			err:  apperrors.New(apperrors.CategoryConfig, apperrors.CodeInvalidConfig, "bad flag"),
			want: 4,
		},
		{
			name: "commit error",
			err:  apperrors.StaleReference("loan_transaction", "lt1"),
			want: 5,
		},
		{
			name: "plain error",
			err:  errors.New("something else"),
			want: 1,
		},
	}

	handler := NewCLIErrorHandler()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.HandleError(tt.err); got != tt.want {
				t.Errorf("HandleError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestHandleErrorWrappedEngineError(t *testing.T) {
	cause := apperrors.New(apperrors.CategoryStorage, apperrors.CodeWriteFailed, "disk unhappy")
	wrapped := apperrors.Wrap(cause, apperrors.CategoryCommit, apperrors.CodeUnexpectedError, "apply suggestion")

	if got := NewCLIErrorHandler().HandleError(wrapped); got != 5 {
		t.Errorf("HandleError() = %d, want 5", got)
	}
}
