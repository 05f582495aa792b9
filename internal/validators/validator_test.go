package validators

import (
	"testing"

	"github.com/anonto42/rehab-social/backend/internal/apperr"
	"github.com/anonto42/rehab-social/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	v := NewValidator()

	assert.NoError(t, v.Validate(&models.SendMessageRequest{ToUserID: 2, Content: "hi"}))

	err := v.Validate(&models.SendMessageRequest{Content: "hi"})
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindInvalidRequest))
	assert.Contains(t, err.Error(), "ToUserID is required")

	err = v.Validate(&models.GetMessagesRequest{OtherUserID: 2, Limit: 500})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Limit must be at most 200")
}
