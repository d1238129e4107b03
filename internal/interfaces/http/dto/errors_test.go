package dto

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeSyncInProgress, http.StatusConflict},
		{ErrCodeJobActive, http.StatusConflict},
		{ErrCodeSyncAborted, http.StatusUnprocessableEntity},
		{ErrCodeUnavailable, http.StatusServiceUnavailable},
		{"SOMETHING_ELSE", http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeSyncInProgress, NormalizeErrorCode("SYNC_IN_PROGRESS"))
	assert.Equal(t, ErrCodeNotFound, NormalizeErrorCode("NOT_FOUND"))
	assert.Equal(t, ErrCodeInternal, NormalizeErrorCode(ErrCodeInternal))
	assert.Equal(t, "CUSTOM", NormalizeErrorCode("CUSTOM"))
}

func TestResponses(t *testing.T) {
	ok := NewListResponse([]int{1, 2}, 2, 20)
	assert.True(t, ok.Success)
	assert.Equal(t, 2, ok.Meta.Total)
	assert.Nil(t, ok.Error)

	failed := NewValidationErrorResponse("bad", "req-1", []ValidationDetail{{Field: "days", Message: "too large"}})
	assert.False(t, failed.Success)
	assert.Equal(t, ErrCodeValidation, failed.Error.Code)
	assert.Equal(t, "req-1", failed.Error.RequestID)
	assert.Len(t, failed.Error.Details, 1)
}
