package diagjson

import (
	"context"
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"secsync/pkg/models"
)

func TestWriterAppendsJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "diag.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteDiagnostics(context.Background(), []*models.Diagnostic{
		{ID: "1", Kind: models.KindIncidents, Class: "timeout", Message: "Request timed out."},
		nil,
		{ID: "2", Kind: models.KindAssets, Class: "remote-status", StatusCode: 503},
	}))
	require.NoError(t, w.Close())

	w, err = NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.WriteDiagnostics(context.Background(), []*models.Diagnostic{{ID: "3", Kind: models.KindThreats}}))
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var ids []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var d models.Diagnostic
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &d))
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []string{"1", "2", "3"}, ids)
}
