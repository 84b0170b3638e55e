package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/thereayou/notiflow/internal/database"
	"github.com/thereayou/notiflow/internal/database/testutil"
	"github.com/thereayou/notiflow/internal/models"
	"github.com/thereayou/notiflow/internal/service"
)

// recordingDispatcher фиксирует публикации и проверяет, что сообщение
// уже читается из хранилища в момент Publish
type recordingDispatcher struct {
	mu        sync.Mutex
	store     *database.Database
	t         *testing.T
	published []service.MessageDTO
}

func (d *recordingDispatcher) Publish(message *service.MessageDTO) {
	d.mu.Lock()
	defer d.mu.Unlock()

	// Запись до рассылки: сообщение обязано существовать в хранилище
	stored, err := d.store.GetMessage(context.Background(), message.ID)
	require.NoError(d.t, err)
	require.Equal(d.t, message.RecipientID, stored.RecipientID)

	d.published = append(d.published, *message)
}

func (d *recordingDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.published)
}

func newTestService(t *testing.T) (*service.MessageService, *database.Database, *recordingDispatcher) {
	t.Helper()

	store := database.NewDatabase(testutil.MustOpenTestDB(t))
	dispatcher := &recordingDispatcher{store: store, t: t}
	svc := service.NewMessageService(store, dispatcher, zap.NewNop())
	return svc, store, dispatcher
}

func seedUser(t *testing.T, store *database.Database, role models.Role) *models.User {
	t.Helper()

	user := &models.User{
		Username:     "user-" + uuid.NewString()[:8],
		Email:        uuid.NewString() + "@example.com",
		PasswordHash: "hash",
		Role:         role,
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveUser(context.Background(), user))
	return user
}

func TestSendPersistsThenPublishes(t *testing.T) {
	svc, store, dispatcher := newTestService(t)
	ctx := context.Background()

	recipient := seedUser(t, store, models.RoleUser)
	operator := seedUser(t, store, models.RoleOperator)

	dto, err := svc.Send(ctx, service.SendInput{
		RecipientID:  recipient.ID,
		SenderID:     operator.ID,
		Title:        "Order Delivered Report",
		Body:         "your order has been delivered",
		Category:     models.CategorySummary,
		ReferenceIDs: []string{"order-42"},
	})
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, dto.ID)
	require.False(t, dto.IsRead)
	require.Nil(t, dto.ReadAt)
	require.Equal(t, models.CategorySummary, dto.Category)

	require.Equal(t, 1, dispatcher.count())
	require.Equal(t, dto.ID, dispatcher.published[0].ID)
}

func TestSendTrimsTitleAndBody(t *testing.T) {
	svc, store, _ := newTestService(t)

	recipient := seedUser(t, store, models.RoleUser)

	dto, err := svc.Send(context.Background(), service.SendInput{
		RecipientID: recipient.ID,
		SenderID:    uuid.New(),
		Title:       "  padded title  ",
		Body:        "  padded body  ",
		Category:    models.CategoryInfo,
	})
	require.NoError(t, err)
	require.Equal(t, "padded title", dto.Title)
	require.Equal(t, "padded body", dto.Body)
}

func TestSendValidation(t *testing.T) {
	svc, store, dispatcher := newTestService(t)
	ctx := context.Background()

	recipient := seedUser(t, store, models.RoleUser)

	cases := []struct {
		name  string
		input service.SendInput
	}{
		{
			name: "missing recipient",
			input: service.SendInput{
				SenderID: uuid.New(),
				Title:    "t", Body: "b", Category: models.CategoryInfo,
			},
		},
		{
			name: "unknown recipient",
			input: service.SendInput{
				RecipientID: uuid.New(), SenderID: uuid.New(),
				Title: "t", Body: "b", Category: models.CategoryInfo,
			},
		},
		{
			name: "blank title",
			input: service.SendInput{
				RecipientID: recipient.ID, SenderID: uuid.New(),
				Title: "   ", Body: "b", Category: models.CategoryInfo,
			},
		},
		{
			name: "title too long",
			input: service.SendInput{
				RecipientID: recipient.ID, SenderID: uuid.New(),
				Title: strings.Repeat("x", models.TitleMaxLen+1), Body: "b", Category: models.CategoryInfo,
			},
		},
		{
			name: "body too long",
			input: service.SendInput{
				RecipientID: recipient.ID, SenderID: uuid.New(),
				Title: "t", Body: strings.Repeat("x", models.BodyMaxLen+1), Category: models.CategoryInfo,
			},
		},
		{
			name: "bad category",
			input: service.SendInput{
				RecipientID: recipient.ID, SenderID: uuid.New(),
				Title: "t", Body: "b", Category: models.Category("gossip"),
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Send(ctx, tc.input)
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}

	// Ничего не сохранено и не разослано
	require.Equal(t, 0, dispatcher.count())
	messages, err := svc.List(ctx, recipient.ID, service.ListInput{})
	require.NoError(t, err)
	require.Empty(t, messages)
}

func TestSendToOfflineRecipientSucceeds(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	recipient := seedUser(t, store, models.RoleUser)

	// Получатель офлайн: рассылка некому, но отправка успешна
	dto, err := svc.Send(ctx, service.SendInput{
		RecipientID: recipient.ID,
		SenderID:    uuid.New(),
		Title:       "queued",
		Body:        "will be seen later",
		Category:    models.CategoryInfo,
	})
	require.NoError(t, err)

	// Позже получатель забирает сообщение запросом
	messages, err := svc.List(ctx, recipient.ID, service.ListInput{})
	require.NoError(t, err)
	require.Len(t, messages, 1)
	require.Equal(t, dto.ID, messages[0].ID)
	require.False(t, messages[0].IsRead)
}

func TestMarkReadIdempotent(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	recipient := seedUser(t, store, models.RoleUser)

	dto, err := svc.Send(ctx, service.SendInput{
		RecipientID: recipient.ID,
		SenderID:    uuid.New(),
		Title:       "t", Body: "b", Category: models.CategoryInfo,
	})
	require.NoError(t, err)

	first, err := svc.MarkRead(ctx, dto.ID, recipient.ID)
	require.NoError(t, err)
	require.True(t, first.IsRead)
	require.NotNil(t, first.ReadAt)

	second, err := svc.MarkRead(ctx, dto.ID, recipient.ID)
	require.NoError(t, err)
	require.True(t, second.IsRead)
	require.NotNil(t, second.ReadAt)
	require.Equal(t, first.ReadAt.Unix(), second.ReadAt.Unix())
}

func TestMarkReadForbiddenForOtherRecipient(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	owner := seedUser(t, store, models.RoleUser)
	stranger := seedUser(t, store, models.RoleUser)

	dto, err := svc.Send(ctx, service.SendInput{
		RecipientID: owner.ID,
		SenderID:    uuid.New(),
		Title:       "t", Body: "b", Category: models.CategoryInfo,
	})
	require.NoError(t, err)

	_, err = svc.MarkRead(ctx, dto.ID, stranger.ID)
	require.ErrorIs(t, err, service.ErrForbidden)

	// Состояние не изменилось
	stored, err := store.GetMessage(ctx, dto.ID)
	require.NoError(t, err)
	require.False(t, stored.IsRead)
	require.Nil(t, stored.ReadAt)
}

func TestMarkReadNotFound(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.MarkRead(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)
}

func TestListUnknownCategoryRejected(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.List(context.Background(), uuid.New(), service.ListInput{Category: "gossip"})
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestUnreadCount(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	recipient := seedUser(t, store, models.RoleUser)

	for i := 0; i < 3; i++ {
		_, err := svc.Send(ctx, service.SendInput{
			RecipientID: recipient.ID,
			SenderID:    uuid.New(),
			Title:       "t", Body: "b", Category: models.CategoryInfo,
		})
		require.NoError(t, err)
	}

	count, err := svc.UnreadCount(ctx, recipient.ID)
	require.NoError(t, err)
	require.EqualValues(t, 3, count)
}
