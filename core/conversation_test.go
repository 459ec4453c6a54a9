package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewMessageDefaults(t *testing.T) {
	msg := NewMessage("conv-1", RoleUser, "hello")

	assert.NotEmpty(t, msg.ID)
	assert.Equal(t, "conv-1", msg.ConversationID)
	assert.Equal(t, RoleUser, msg.Role)
	assert.Equal(t, VisibilityUserFacing, msg.Visibility)
	assert.Equal(t, MessageTypeChat, msg.MessageType)
	assert.False(t, msg.CreatedAt.IsZero())
}

func TestNewIDUnique(t *testing.T) {
	assert.NotEqual(t, NewID(), NewID())
}
