package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cubomagico/memoria/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestAnalyzeFromStdin(t *testing.T) {
	contact := uuid.New()
	out, err := run(t, `{"direction":"inbound","text":"Eu adoro o curso"}`,
		"analyze", "-", "--channel", "chat", "--contact", contact.String())
	require.NoError(t, err)

	var result domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.NewMemories)
	types := make([]domain.MemoryType, 0, len(result.NewMemories))
	for _, c := range result.NewMemories {
		types = append(types, c.Type)
	}
	assert.Contains(t, types, domain.MemoryTypePreference)
}

func TestAnalyzeReinforcesKnownMemories(t *testing.T) {
	contact := uuid.New()
	event := `{"direction":"inbound","text":"Eu adoro o curso"}`

	out, err := run(t, event, "analyze", "-", "--channel", "chat", "--contact", contact.String())
	require.NoError(t, err)
	var first domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &first))

	var known []domain.Memory
	for _, c := range first.NewMemories {
		known = append(known, domain.Memory{
			ID: uuid.New(), ContactID: contact, Type: c.Type, Content: c.Content,
			Confidence: c.Confidence, Source: c.Source,
		})
	}
	data, err := json.Marshal(known)
	require.NoError(t, err)
	memories := writeFile(t, "memories.json", string(data))

	out, err = run(t, event, "analyze", "-", "--channel", "chat", "--contact", contact.String(), "--memories", memories)
	require.NoError(t, err)
	var second domain.ExtractionResult
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	assert.Empty(t, second.NewMemories)
	assert.Len(t, second.Reinforcements, len(known))
}

func TestAnalyzeRejectsInvalidEvent(t *testing.T) {
	_, err := run(t, `{"direction":"sideways","text":"oi"}`, "analyze", "-", "--channel", "chat", "--contact", uuid.NewString())
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)

	_, err = run(t, `{}`, "analyze", "-", "--channel", "fax")
	assert.ErrorIs(t, err, domain.ErrInvalidEvent)
}

func TestCatalogDumpAndValidate(t *testing.T) {
	out, err := run(t, "", "catalog", "dump")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "patterns:"))

	path := writeFile(t, "catalog.yaml", out)
	out, err = run(t, "", "catalog", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "ok")

	bad := writeFile(t, "bad.yaml", "patterns:\n  - type: preference\n    colour: blue\n")
	_, err = run(t, "", "catalog", "validate", bad)
	assert.Error(t, err)
}

func TestProfileCommand(t *testing.T) {
	memories := []domain.Memory{
		{ID: uuid.New(), Type: domain.MemoryTypeGoal, Confidence: 0.6, Source: domain.SourceChat,
			Content: domain.MemoryContent{Summary: "minha meta é emagrecer", Keywords: []string{"meta"}}},
	}
	data, err := json.Marshal(memories)
	require.NoError(t, err)
	path := writeFile(t, "memories.json", string(data))

	out, err := run(t, "", "profile", path, "--signals", "chat=3,quiz=1")
	require.NoError(t, err)

	var p domain.CognitiveProfile
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, 1, p.MemoryCount)
	assert.Equal(t, domain.SourceChat, p.DominantChannel)
	assert.Equal(t, 4, p.SignalCounts.Total())
}

func TestParseSignalCounts(t *testing.T) {
	counts, err := parseSignalCounts(" quiz=2, chat=1,quiz=1 ")
	require.NoError(t, err)
	assert.Equal(t, domain.SignalCounts{domain.SourceQuiz: 3, domain.SourceChat: 1}, counts)

	for _, bad := range []string{"quiz", "quiz=x", "chat=-1"} {
		_, err := parseSignalCounts(bad)
		assert.Error(t, err, bad)
	}
}

func TestPublishValidatesIDsBeforeConnecting(t *testing.T) {
	_, err := run(t, "{}", "publish", "-", "--channel", "chat", "--tenant", "nope", "--project", uuid.NewString())
	assert.ErrorContains(t, err, "--tenant")
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Equal(t, "memoria dev (unknown)\n", out)
}
