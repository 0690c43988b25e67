package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte("repo: acme/widgets\n"))
	require.NoError(t, err)

	assert.Equal(t, DefaultPollSeconds, cfg.PollSeconds)
	assert.Equal(t, DefaultMaxDevIterations, cfg.MaxDevIterations)
	assert.Equal(t, DefaultMaxReviewIterations, cfg.MaxReviewIterations)
	assert.Equal(t, DefaultMaxAgentIterations, cfg.MaxAgentIterations)
	assert.False(t, cfg.AutoCodeAfterPlan)
	assert.Equal(t, ProviderAnthropic, cfg.LLM.Provider)
	assert.Equal(t, DefaultLLMRetries, cfg.LLM.Retries)
	assert.Equal(t, "acme", cfg.Owner())
	assert.Equal(t, "widgets", cfg.Name())
}

func TestParseEnvExpansion(t *testing.T) {
	t.Setenv("TEST_CFG_TOKEN", "ghp_secret")

	cfg, err := Parse([]byte("repo: acme/widgets\ntoken: ${TEST_CFG_TOKEN}\n"))
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", cfg.Token)
}

func TestParseUnsetEnvKeepsPlaceholder(t *testing.T) {
	cfg, err := Parse([]byte("repo: acme/widgets\ntoken: ${DOES_NOT_EXIST_XYZ}\n"))
	require.NoError(t, err)
	assert.Equal(t, "${DOES_NOT_EXIST_XYZ}", cfg.Token)
}

func TestParseValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing repo", "poll_seconds: 5\n"},
		{"malformed repo", "repo: widgets\n"},
		{"unknown provider", "repo: a/b\nllm:\n  provider: cohere\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("POLL_SECONDS", "30")
	t.Setenv("AUTO_CODE_AFTER_PLAN", "true")

	cfg, err := Parse([]byte("repo: acme/widgets\npoll_seconds: 5\n"))
	require.NoError(t, err)
	assert.Equal(t, 30, cfg.PollSeconds)
	assert.True(t, cfg.AutoCodeAfterPlan)
}
