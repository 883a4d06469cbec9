package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reliefroute/backend/internal/models"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("AI_URL", "")
	t.Setenv("ASSISTANT_BASE_URL", "")
	t.Setenv("NATS_URL", "")
	t.Setenv("REDIS_URL", "")
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--store", "memory", "--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestClassifyCommand(t *testing.T) {
	out, err := run(t, "classify", "--text", "Flood water entering homes, 4 people stuck")
	require.NoError(t, err)

	var c models.Classification
	require.NoError(t, json.Unmarshal([]byte(out), &c))
	assert.Equal(t, "flood", c.IncidentType)
	assert.Equal(t, 4, c.PeopleAffected)
}

func TestClassifyCommandNeedsText(t *testing.T) {
	_, err := run(t, "classify")
	assert.Error(t, err)
}

func TestRecomputeWeightsOnEmptyHistory(t *testing.T) {
	out, err := run(t, "recompute-weights")
	require.NoError(t, err)

	var body struct {
		Weights models.WeightVector `json:"weights"`
		Updated bool                `json:"updated"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.False(t, body.Updated)
	assert.Equal(t, 20.0, body.Weights.Service)
}

func TestAnomaliesRejectsNegativeLimit(t *testing.T) {
	_, err := run(t, "anomalies", "--limit", "-1")
	assert.Error(t, err)
}

func TestMigrateNeedsPostgres(t *testing.T) {
	_, err := run(t, "migrate")
	assert.Error(t, err)
}
