package container

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Database.Path = filepath.Join(dir, "audit.db")
	cfg.Storage.BaseDir = filepath.Join(dir, "documents")
	return cfg
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(DefaultConfig(), nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.Storage.Driver = "ftp"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "storage driver")

	cfg = DefaultConfig()
	cfg.Lark.Enabled = true
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "lark")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	assert.False(t, c.Health().Overall)

	require.NoError(t, c.Start(context.Background()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(context.Background()))

	health := c.Health()
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.True(t, health.Components["database"].Healthy)
	assert.Equal(t, "worker count: 1", health.Components["workers"].Message)
	assert.Nil(t, c.Services().Notification)
	assert.Nil(t, c.Messenger())

	// Services share one database.
	ctx := context.Background()
	batch, err := c.Services().Batch.Create(ctx, entity.BatchModeAudit, "三月招待")
	require.NoError(t, err)
	got, err := c.Services().Batch.Get(ctx, batch.ID)
	require.NoError(t, err)
	assert.Equal(t, "三月招待", got.Label)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(context.Background()))
}

func TestContainer_WorkerDisabled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Worker.Enabled = false

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	assert.False(t, c.Workers().IsRunning())
	workers := c.Health().Components["workers"]
	assert.True(t, workers.Healthy)
	assert.Equal(t, "disabled", workers.Message)
}

func TestContainer_UnknownDefaultProvider(t *testing.T) {
	cfg := testConfig(t)
	cfg.Oracle.DefaultProvider = "gemini"

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	err = c.Start(context.Background())
	assert.True(t, errors.Is(err, entity.ErrInvalidProvider))
}

func TestContainer_HTTPServer(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	t.Cleanup(func() { _ = c.Close() })

	server := c.NewHTTPServer("test")
	assert.Equal(t, "0.0.0.0:8080", server.Address())

	w := httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"version":"test"`)

	w = httptest.NewRecorder()
	server.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/batches", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestProvideEngine(t *testing.T) {
	engine := ProvideEngine(&RulesConfig{})
	assert.Equal(t, entity.DefaultDiningPolicy(), engine.DiningPolicy())

	engine = ProvideEngine(&RulesConfig{
		Companies: map[string]string{"测试公司": "91110000TEST00001X"},
		Dining:    &entity.DiningPolicy{AmountMultiple: 200},
	})
	assert.Equal(t, 1, engine.Registry().Len())
	assert.Equal(t, 200.0, engine.DiningPolicy().AmountMultiple)
}

func TestConvertToZapFields(t *testing.T) {
	fields := convertToZapFields("batch_id", "b-1", 42, "skipped", "error", errors.New("boom"), "dangling")
	require.Len(t, fields, 2)
	assert.Equal(t, "batch_id", fields[0].Key)
	assert.Equal(t, "error", fields[1].Key)
}
