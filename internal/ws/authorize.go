package ws

import (
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// JoinAuthorizer единственная точка проверки доступа к комнате.
// Hub.JoinRoom принимает только RoomKey, поэтому вход в комнату
// недостижим в обход этой проверки.
type JoinAuthorizer struct {
	log *zap.Logger
}

func NewJoinAuthorizer(log *zap.Logger) *JoinAuthorizer {
	return &JoinAuthorizer{log: log}
}

// AuthorizeJoin разрешает вход только в собственную комнату получателя.
// Отказ не отправляется в сеть, только в лог.
func (a *JoinAuthorizer) AuthorizeJoin(connID, claimedRecipientID, subject uuid.UUID) (RoomKey, error) {
	if claimedRecipientID == uuid.Nil || claimedRecipientID != subject {
		a.log.Warn("room join denied",
			zap.String("conn_id", connID.String()),
			zap.String("claimed_recipient", claimedRecipientID.String()),
			zap.String("subject", subject.String()),
		)
		return RoomKey{}, ErrJoinDenied
	}

	return RoomKey{recipient: claimedRecipientID}, nil
}
