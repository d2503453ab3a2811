package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/josuejuca/freeswitch-logs/internal/domain/model"
	"github.com/josuejuca/freeswitch-logs/internal/provider"
)

func liveRows(users ...string) []model.RegistrationSnapshot {
	rows := make([]model.RegistrationSnapshot, 0, len(users))
	for _, u := range users {
		rows = append(rows, model.RegistrationSnapshot{RegUser: u})
	}
	return rows
}

// TestLiveService_CacheHit — повторный вызов в пределах TTL не запускает провайдер.
func TestLiveService_CacheHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := provider.NewMockSnapshotProvider(ctrl)
	mock.EXPECT().Fetch(gomock.Any()).Return(liveRows("1001", "1002", "1002"), nil).Times(1)

	live := NewLiveService(mock, time.Minute, 0, discardLogger())

	count, err := live.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, count.Count)

	snap, err := live.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Rows, 3)
	assert.Equal(t, count.Timestamp, snap.TakenAt)
}

func TestLiveService_CacheDisabled(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := provider.NewMockSnapshotProvider(ctrl)
	mock.EXPECT().Fetch(gomock.Any()).Return(liveRows("1001"), nil).Times(2)

	live := NewLiveService(mock, 0, 0, discardLogger())
	for i := 0; i < 2; i++ {
		_, err := live.Snapshot(context.Background())
		require.NoError(t, err)
	}
}

func TestLiveService_CacheExpires(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := provider.NewMockSnapshotProvider(ctrl)
	mock.EXPECT().Fetch(gomock.Any()).Return(liveRows("1001"), nil).Times(2)

	live := NewLiveService(mock, 30*time.Millisecond, 0, discardLogger())
	_, err := live.Snapshot(context.Background())
	require.NoError(t, err)

	time.Sleep(80 * time.Millisecond)
	_, err = live.Snapshot(context.Background())
	require.NoError(t, err)
}

func TestLiveService_ProviderError(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := provider.NewMockSnapshotProvider(ctrl)
	gomock.InOrder(
		mock.EXPECT().Fetch(gomock.Any()).Return(nil, errPBXDown),
		mock.EXPECT().Fetch(gomock.Any()).Return(nil, nil),
	)

	live := NewLiveService(mock, time.Minute, 0, discardLogger())

	_, err := live.ActiveCount(context.Background())
	assert.ErrorIs(t, err, ErrProvider)

	// Ошибка не кэшируется; пустой snapshot — валидный результат
	count, err := live.ActiveCount(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count.Count)

	snap, err := live.Snapshot(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, snap.Rows)
}

// TestLiveService_FetchTimeout — зависший провайдер прерывается по дедлайну сервиса,
// даже если у запроса дедлайна нет.
func TestLiveService_FetchTimeout(t *testing.T) {
	ctrl := gomock.NewController(t)
	mock := provider.NewMockSnapshotProvider(ctrl)
	mock.EXPECT().Fetch(gomock.Any()).DoAndReturn(
		func(ctx context.Context) ([]model.RegistrationSnapshot, error) {
			_, ok := ctx.Deadline()
			assert.True(t, ok, "провайдер должен получить контекст с дедлайном")
			<-ctx.Done()
			return nil, fmt.Errorf("%w: %v", provider.ErrFetchFailed, ctx.Err())
		})

	live := NewLiveService(mock, time.Minute, 50*time.Millisecond, discardLogger())

	start := time.Now()
	_, err := live.ActiveCount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.Less(t, time.Since(start), 2*time.Second)
}
