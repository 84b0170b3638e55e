package ws

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestAuthorizeJoinOwnRoom(t *testing.T) {
	authorizer := NewJoinAuthorizer(zap.NewNop())

	subject := uuid.New()
	key, err := authorizer.AuthorizeJoin(uuid.New(), subject, subject)
	require.NoError(t, err)
	require.False(t, key.IsZero())
	require.Equal(t, subject, key.RecipientID())
}

func TestAuthorizeJoinForeignRoomDenied(t *testing.T) {
	authorizer := NewJoinAuthorizer(zap.NewNop())

	key, err := authorizer.AuthorizeJoin(uuid.New(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, ErrJoinDenied)
	require.True(t, key.IsZero())
}

func TestAuthorizeJoinNilRecipientDenied(t *testing.T) {
	authorizer := NewJoinAuthorizer(zap.NewNop())

	subject := uuid.New()
	_, err := authorizer.AuthorizeJoin(uuid.New(), uuid.Nil, subject)
	require.ErrorIs(t, err, ErrJoinDenied)
}

func TestZeroRoomKeyJoinIgnored(t *testing.T) {
	hub := newTestHub(t)

	client := newTestClient(hub, uuid.New())
	registerAndWait(t, hub, client)

	// RoomKey без авторизации пустой и hub его не принимает
	hub.JoinRoom(client, RoomKey{})
	require.False(t, client.InRoom(uuid.Nil))
}
