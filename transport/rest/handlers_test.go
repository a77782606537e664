package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-server/internal/entity"
)

var errRedisDown = errors.New("redis down")

type mockGameUseCase struct{ mock.Mock }

func (that *mockGameUseCase) ListOpenGames(ctx context.Context, limit int) ([]entity.Snapshot, error) {
	args := that.Called(ctx, limit)
	return args.Get(0).([]entity.Snapshot), args.Error(1)
}

func (that *mockGameUseCase) CreateGame(ctx context.Context) (entity.Snapshot, error) {
	args := that.Called(ctx)
	return args.Get(0).(entity.Snapshot), args.Error(1)
}

func newRouter(t *testing.T) (http.Handler, *mockGameUseCase) {
	t.Helper()

	uc := &mockGameUseCase{}
	t.Cleanup(func() { uc.AssertExpectations(t) })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	return NewRouter(NewHandlers(logger, uc)), uc
}

func serve(router http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, target, nil))

	return rec
}

func TestHandlers_Ping(t *testing.T) {
	router, _ := newRouter(t)

	rec := serve(router, http.MethodGet, "/ping")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())
}

func TestHandlers_ListGames(t *testing.T) {
	t.Run("Returns open games", func(t *testing.T) {
		// Given: one open game
		router, uc := newRouter(t)

		snapshots := []entity.Snapshot{{
			ID:     "g1",
			Result: entity.ResultInProgress,
			Players: entity.SlotPlayers{
				Slot1: &entity.SlotPlayer{ID: "conn-a"},
			},
		}}
		uc.On("ListOpenGames", mock.Anything, 10).Return(snapshots, nil).Once()

		// When: GET /games?limit=10
		rec := serve(router, http.MethodGet, "/games?limit=10")

		// Then: the snapshots are returned as JSON
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

		var body []entity.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, snapshots, body)
	})

	t.Run("Limit is capped", func(t *testing.T) {
		router, uc := newRouter(t)

		uc.On("ListOpenGames", mock.Anything, maxOpenGamesLimit).Return([]entity.Snapshot{}, nil).Once()

		rec := serve(router, http.MethodGet, "/games?limit=100000")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("Invalid limit", func(t *testing.T) {
		router, _ := newRouter(t)

		rec := serve(router, http.MethodGet, "/games?limit=abc")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Storage failure", func(t *testing.T) {
		router, uc := newRouter(t)

		uc.On("ListOpenGames", mock.Anything, 0).Return([]entity.Snapshot(nil), errRedisDown).Once()

		rec := serve(router, http.MethodGet, "/games")

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHandlers_CreateGame(t *testing.T) {
	t.Run("Created", func(t *testing.T) {
		router, uc := newRouter(t)

		uc.On("CreateGame", mock.Anything).Return(entity.Snapshot{ID: "g1", Result: entity.ResultInProgress}, nil).Once()

		rec := serve(router, http.MethodPost, "/games")

		require.Equal(t, http.StatusCreated, rec.Code)

		var body entity.Snapshot
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "g1", body.ID)
		assert.Nil(t, body.Turn)
	})

	t.Run("Wrong method", func(t *testing.T) {
		router, _ := newRouter(t)

		rec := serve(router, http.MethodDelete, "/games")

		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}
