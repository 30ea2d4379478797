// pkg/registry/registry_test.go
package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	reg := Default()
	require.NoError(t, reg.Validate())
	assert.Equal(t, []string{
		"validate-application-data",
		"check-readiness-score",
		"check-priority-routing",
		"update-application-status",
		"index-application",
		"send-notification",
	}, reg.TaskTypes())

	a, ok := reg.Find("send-notification")
	require.True(t, ok)
	assert.Equal(t, "communication", a.Category)

	_, ok = reg.Find("issue-certificate")
	assert.False(t, ok)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name       string
		activities []Activity
	}{
		{"missing id", []Activity{{TaskType: "a"}}},
		{"missing task type", []Activity{{ID: "a"}}},
		{"duplicate task type", []Activity{{ID: "a", TaskType: "x"}, {ID: "b", TaskType: "x"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := &ActivityRegistry{Activities: tt.activities}
			assert.Error(t, reg.Validate())
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "activities.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"version": "2.0.0",
		"processId": "gacp-certification",
		"activities": [{"id": "index", "taskType": "index-application", "retries": 5}]
	}`), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Equal(t, "2.0.0", reg.Version)
	a, ok := reg.Find("index-application")
	require.True(t, ok)
	assert.Equal(t, 5, a.Retries)

	require.NoError(t, os.WriteFile(path, []byte(`{"activities": [{"id": "x"}]}`), 0o600))
	_, err = LoadRegistry(path)
	assert.Error(t, err)

	_, err = LoadRegistry(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}
