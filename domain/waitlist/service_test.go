package waitlist

import (
	"context"
	"testing"

	"github.com/akeren/waitlist-foundry/internal/log"
	"github.com/akeren/waitlist-foundry/internal/models"
	notifymocks "github.com/akeren/waitlist-foundry/internal/notify/mocks"
	"github.com/akeren/waitlist-foundry/internal/storage"
	storagemocks "github.com/akeren/waitlist-foundry/internal/storage/mocks"
	apperrors "github.com/akeren/waitlist-foundry/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func strPtr(s string) *string { return &s }

func TestWaitlistService_Join(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockStore := storagemocks.NewMockStore(ctrl)
	mockNotifier := notifymocks.NewMockNotifier(ctrl)
	metrics := NewMetrics(prometheus.NewRegistry())
	logger := log.NewLoggerWithJSONOutput()
	service := NewWaitlistService(logger, mockStore, mockNotifier, metrics)

	t.Run("successful join", func(t *testing.T) {
		req := &JoinWaitlistRequest{
			Name:    "  Ana  ",
			Email:   " ana@x.io ",
			Company: strPtr("   "),
			UseCase: "analytics",
		}

		mockStore.EXPECT().
			TryEnroll(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, entry *models.WaitlistEntry) (int64, error) {
				assert.Equal(t, "Ana", entry.Name)
				assert.Equal(t, "ana@x.io", entry.Email)
				assert.Nil(t, entry.Company)
				entry.ID = 1
				return 1, nil
			})
		mockNotifier.EXPECT().
			Notify(gomock.AssignableToTypeOf(models.WaitlistEntry{}), int64(1))

		result, err := service.Join(context.Background(), req)

		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, int64(1), result.Position)
		assert.Equal(t, int64(1), result.TotalCount)
		assert.Equal(t, joinedMessage, result.Message)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.enrollments.WithLabelValues(outcomeEnrolled)))
	})

	t.Run("duplicate email is a conflict and does not notify", func(t *testing.T) {
		req := &JoinWaitlistRequest{Name: "Ana", Email: "ana@x.io", UseCase: "analytics"}

		mockStore.EXPECT().
			TryEnroll(gomock.Any(), gomock.Any()).
			Return(int64(0), storage.NewConflictError(nil))

		result, err := service.Join(context.Background(), req)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, apperrors.IsConflict(err))
		assert.Equal(t, 409, apperrors.HTTPStatusCode(err))
		assert.Equal(t, storage.ConflictMessage, apperrors.GetHumanReadableMessage(err))
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.enrollments.WithLabelValues(outcomeConflict)))
	})

	t.Run("storage failure surfaces as storage error", func(t *testing.T) {
		req := &JoinWaitlistRequest{Name: "Bo", Email: "bo@x.io", UseCase: "support"}

		mockStore.EXPECT().
			TryEnroll(gomock.Any(), gomock.Any()).
			Return(int64(0), apperrors.NewDatabaseError("unable to enroll waitlist entry", nil))

		result, err := service.Join(context.Background(), req)

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, 500, apperrors.HTTPStatusCode(err))
	})

	t.Run("invalid input never reaches the store", func(t *testing.T) {
		result, err := service.Join(context.Background(), &JoinWaitlistRequest{Name: "", Email: "not-an-email", UseCase: " "})

		require.Error(t, err)
		assert.Nil(t, result)
		assert.True(t, apperrors.IsValidation(err))
		assert.Equal(t, 400, apperrors.HTTPStatusCode(err))
	})

	t.Run("nil request", func(t *testing.T) {
		result, err := service.Join(context.Background(), nil)

		assert.Error(t, err)
		assert.Nil(t, result)
	})
}

func TestWaitlistService_JoinWithoutNotifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := storagemocks.NewMockStore(ctrl)
	service := NewWaitlistService(log.NewLoggerWithJSONOutput(), mockStore, nil, nil)

	mockStore.EXPECT().TryEnroll(gomock.Any(), gomock.Any()).Return(int64(3), nil)

	result, err := service.Join(context.Background(), &JoinWaitlistRequest{Name: "Cy", Email: "cy@x.io", UseCase: "ops"})

	require.NoError(t, err)
	assert.Equal(t, int64(3), result.Position)
}

func TestWaitlistService_Count(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockStore := storagemocks.NewMockStore(ctrl)
	service := NewWaitlistService(log.NewLoggerWithJSONOutput(), mockStore, nil, nil)

	mockStore.EXPECT().Count(gomock.Any()).Return(int64(42), nil)

	result, err := service.Count(context.Background())

	require.NoError(t, err)
	assert.Equal(t, int64(42), result.Count)

	mockStore.EXPECT().Count(gomock.Any()).Return(int64(0), apperrors.NewDatabaseError("unable to count waitlist entries", nil))

	_, err = service.Count(context.Background())
	assert.Error(t, err)
}
