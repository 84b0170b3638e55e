package ws

import "github.com/google/uuid"

// RoomKey идентификатор комнаты получателя. Создается только через
// JoinAuthorizer, сырые строки в качестве ключа комнаты не принимаются.
type RoomKey struct {
	recipient uuid.UUID
}

func (k RoomKey) RecipientID() uuid.UUID {
	return k.recipient
}

func (k RoomKey) IsZero() bool {
	return k.recipient == uuid.Nil
}

func (k RoomKey) String() string {
	return k.recipient.String()
}
