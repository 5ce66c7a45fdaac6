package api

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pixell07/localrag/internal/apperr"
	"github.com/pixell07/localrag/internal/entity"
)

func TestValidateChatRequestRejectsEmptyMessage(t *testing.T) {
	err := validateChatRequest(chatRequest{Message: ""})
	require.Error(t, err)
	kind, _ := apperr.KindOf(err)
	require.Equal(t, apperr.KindValidation, kind)
}

func TestValidateChatRequestRejectsOversizedMessage(t *testing.T) {
	big := make([]byte, maxMessageChars+1)
	for i := range big {
		big[i] = 'a'
	}
	err := validateChatRequest(chatRequest{Message: string(big)})
	require.Error(t, err)
}

func TestValidateChatRequestRejectsTooManyHistoryTurns(t *testing.T) {
	history := make([]chatHistoryTurn, maxHistoryTurns+1)
	for i := range history {
		history[i] = chatHistoryTurn{Role: entity.RoleUser, Content: "hi"}
	}
	err := validateChatRequest(chatRequest{Message: "hello", History: history})
	require.Error(t, err)
}

func TestValidateChatRequestRejectsBadRole(t *testing.T) {
	err := validateChatRequest(chatRequest{
		Message: "hello",
		History: []chatHistoryTurn{{Role: "system", Content: "hi"}},
	})
	require.Error(t, err)
}

func TestValidateChatRequestRejectsBadTopK(t *testing.T) {
	err := validateChatRequest(chatRequest{Message: "hello", TopK: 101})
	require.Error(t, err)

	err = validateChatRequest(chatRequest{Message: "hello", TopK: 0})
	require.NoError(t, err)
}

func TestValidateChatRequestAcceptsWellFormedRequest(t *testing.T) {
	err := validateChatRequest(chatRequest{
		Message: "hello there",
		TopK:    5,
		History: []chatHistoryTurn{{Role: entity.RoleAssistant, Content: "hi"}},
	})
	require.NoError(t, err)
}
