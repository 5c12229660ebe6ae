package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromErrorWrapsUnknown(t *testing.T) {
	err := FromError(fmt.Errorf("boom"))
	require.Equal(t, ErrInternal.Code, err.Code)
	require.Equal(t, http.StatusInternalServerError, err.Status)
}

func TestHasCodeThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("check in: %w", Clone(ErrQRTokenExpired, "stale"))
	require.True(t, HasCode(wrapped, ErrQRTokenExpired.Code))
	require.False(t, HasCode(wrapped, ErrInvalidQRToken.Code))
	require.False(t, HasCode(fmt.Errorf("plain"), ErrQRTokenExpired.Code))
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	detailed := WithDetails(ErrDeviceMismatch, map[string]interface{}{"oldDeviceId": "a"})
	require.Equal(t, "a", detailed.Details["oldDeviceId"])
	require.Nil(t, ErrDeviceMismatch.Details)

	again := WithDetails(detailed, map[string]interface{}{"newDeviceId": "b"})
	require.Len(t, again.Details, 2)
	require.Len(t, detailed.Details, 1)
}
