package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func TestModelService_History(t *testing.T) {
	svc := NewModelService(newMemModelHistory(), testProviders(), nil, &mockLogger{})
	ctx := context.Background()

	_, err := svc.Add(ctx, "siliconflow", "a")
	require.NoError(t, err)
	_, err = svc.Add(ctx, "siliconflow", "b")
	require.NoError(t, err)
	models, err := svc.Add(ctx, "siliconflow", " a ")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, models)

	models, err = svc.Remove(ctx, "siliconflow", "a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, models)

	models, err = svc.List(ctx, "openrouter")
	require.NoError(t, err)
	assert.Empty(t, models)
}

func TestModelService_Cap(t *testing.T) {
	svc := NewModelService(newMemModelHistory(), testProviders(), nil, &mockLogger{})
	ctx := context.Background()

	for i := 0; i < MaxModelHistory+5; i++ {
		_, err := svc.Add(ctx, "openrouter", fmt.Sprintf("m-%d", i))
		require.NoError(t, err)
	}
	models, err := svc.List(ctx, "openrouter")
	require.NoError(t, err)
	assert.Len(t, models, MaxModelHistory)
	assert.Equal(t, fmt.Sprintf("m-%d", MaxModelHistory+4), models[0])
}

func TestModelService_Validation(t *testing.T) {
	svc := NewModelService(newMemModelHistory(), testProviders(), nil, &mockLogger{})
	ctx := context.Background()

	_, err := svc.List(ctx, "gemini")
	assert.ErrorIs(t, err, entity.ErrInvalidProvider)
	_, err = svc.Add(ctx, "gemini", "m")
	assert.ErrorIs(t, err, entity.ErrInvalidProvider)
	_, err = svc.Add(ctx, "siliconflow", "  ")
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
	_, err = svc.Remove(ctx, "siliconflow", "")
	assert.ErrorIs(t, err, entity.ErrInvalidInput)
}

func TestModelService_FreeVisionModels(t *testing.T) {
	catalog := &stubCatalog{models: []string{"a/free", "b/free"}}
	svc := NewModelService(newMemModelHistory(), testProviders(), catalog, &mockLogger{})

	models, err := svc.FreeVisionModels(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a/free", "b/free"}, models)

	catalog.err = errors.New("upstream down")
	_, err = svc.FreeVisionModels(context.Background())
	assert.Error(t, err)

	noCatalog := NewModelService(newMemModelHistory(), testProviders(), nil, &mockLogger{})
	_, err = noCatalog.FreeVisionModels(context.Background())
	assert.ErrorIs(t, err, entity.ErrOracleUnavailable)
}
