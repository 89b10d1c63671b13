package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/expense-audit/internal/application/port"
	"github.com/garyjia/expense-audit/internal/domain/entity"
)

func usageEvent(provider, model string, prompt, completion int64, batchID string) port.UsageEvent {
	return port.UsageEvent{
		UsageRecord: entity.UsageRecord{
			Provider:         provider,
			Model:            model,
			PromptTokens:     prompt,
			CompletionTokens: completion,
			BatchID:          batchID,
		},
		CreatedAt: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestUsageService_RecordUsage(t *testing.T) {
	tests := []struct {
		name     string
		rec      entity.UsageRecord
		recorded bool
	}{
		{name: "recorded", rec: entity.UsageRecord{Provider: "kimi", Model: "moonshot-v1-8k", PromptTokens: 10, CompletionTokens: 2}, recorded: true},
		{name: "completion only", rec: entity.UsageRecord{Provider: "kimi", Model: "moonshot-v1-8k", CompletionTokens: 2}, recorded: true},
		{name: "missing provider", rec: entity.UsageRecord{Model: "m", PromptTokens: 10}},
		{name: "missing model", rec: entity.UsageRecord{Provider: "kimi", PromptTokens: 10}},
		{name: "no tokens", rec: entity.UsageRecord{Provider: "kimi", Model: "m"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &memUsageRepo{}
			svc := NewUsageService(repo, &mockLogger{})

			require.NoError(t, svc.RecordUsage(context.Background(), tt.rec))
			if tt.recorded {
				assert.Len(t, repo.events, 1)
			} else {
				assert.Empty(t, repo.events)
			}
		})
	}
}

func TestUsageService_Report(t *testing.T) {
	repo := &memUsageRepo{}
	svc := NewUsageService(repo, &mockLogger{}).(*usageServiceImpl)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Date(2025, 5, 31, 23, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.RecordUsage(ctx, entity.UsageRecord{Provider: "siliconflow", Model: "qwen", PromptTokens: 100, CompletionTokens: 10}))
	svc.now = func() time.Time { return time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, svc.RecordUsage(ctx, entity.UsageRecord{Provider: "siliconflow", Model: "qwen", PromptTokens: 50, CompletionTokens: 5}))
	require.NoError(t, svc.RecordUsage(ctx, entity.UsageRecord{Provider: "openrouter", Model: "qwen", PromptTokens: 1, CompletionTokens: 1}))

	report, err := svc.Report(ctx)
	require.NoError(t, err)

	assert.Equal(t, entity.UsageBucket{Prompt: 151, Completion: 16, Total: 167}, report.Total)
	assert.Equal(t, int64(110), report.Monthly["2025-05"].Total)
	assert.Equal(t, int64(57), report.Monthly["2025-06"].Total)

	require.Contains(t, report.Models, "qwen")
	assert.Equal(t, int64(167), report.Models["qwen"].Total.Total)

	require.Contains(t, report.Providers, "siliconflow")
	sf := report.Providers["siliconflow"]
	assert.Equal(t, int64(165), sf.Total.Total)
	assert.Equal(t, int64(55), sf.Monthly["2025-06"].Total)
	assert.Equal(t, int64(165), sf.Models["qwen"].Total.Total)
	assert.Equal(t, int64(2), report.Providers["openrouter"].Models["qwen"].Total.Total)

	require.NoError(t, svc.Reset(ctx))
	report, err = svc.Report(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Total.Total)
	assert.Empty(t, report.Providers)
}
