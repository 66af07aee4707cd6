package planning

import (
	"errors"
	"testing"

	"github.com/JustinGuese/kubernetes-docker-autonomous-trading-agent/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePlan(t *testing.T) {
	tests := []struct {
		name       string
		raw        string
		wantAction domain.ActionType
		wantTarget string
		wantErr    bool
	}{
		{
			name:       "bare json",
			raw:        `{"action_type":"analyze","target":"SOLUSDT","params":{},"confidence":0.8,"reason":"check"}`,
			wantAction: domain.ActionAnalyze,
			wantTarget: "SOLUSDT",
		},
		{
			name:       "markdown fenced",
			raw:        "```json\n{\"action_type\":\"scrape\",\"target\":\"https://coindesk.com\",\"confidence\":0.9}\n```",
			wantAction: domain.ActionScrape,
			wantTarget: "https://coindesk.com",
		},
		{
			name:       "prose wrapped",
			raw:        "Sure! Here is my decision:\n{\"action_type\":\"noop\",\"reason\":\"mixed {signals}\"}\nGood luck.",
			wantAction: domain.ActionNoop,
		},
		{
			name:       "unknown action degrades to noop",
			raw:        `{"action_type":"short_everything","confidence":1}`,
			wantAction: domain.ActionNoop,
		},
		{name: "garbage", raw: "I cannot decide today.", wantErr: true},
		{name: "empty", raw: "   ", wantErr: true},
		{name: "null", raw: "null", wantErr: true},
		{name: "broken json", raw: `{"action_type": "swap", "params": {`, wantErr: true},
		{name: "array", raw: `[{"action_type":"noop"}]`, wantAction: domain.ActionNoop},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := ParsePlan(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrNoPlan))
				assert.Nil(t, plan)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, plan)
			assert.Equal(t, tt.wantAction, plan.ActionType)
			assert.Equal(t, tt.wantTarget, plan.Target)
		})
	}
}

func TestParsePlan_KeepsUnknownActionName(t *testing.T) {
	plan, err := ParsePlan(`{"action_type":"short_everything"}`)
	require.NoError(t, err)
	assert.Equal(t, "short_everything", plan.RecordedActionType())
}
