package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datamart-io/marketplace-api/pkg/config"
	"github.com/datamart-io/marketplace-api/pkg/storage"
	"github.com/datamart-io/marketplace-api/pkg/tabular"
)

func writeScript(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "transform.sh")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o755))
	return path
}

func runAnonymizer(t *testing.T, script, input string) (string, AnonymizationOutcome) {
	t.Helper()
	outputDir := t.TempDir()
	store, err := storage.NewLocalStorage(outputDir)
	require.NoError(t, err)

	svc := NewAnonymizerService(config.AnonymizerConfig{
		Command:   "/bin/sh",
		ExtraArgs: []string{script},
		Timeout:   30 * time.Second,
		Workers:   1,
	}, tabular.NewReader(), store, nil, nil)

	done := make(chan AnonymizationOutcome, 1)
	var gotID string
	svc.Start(context.Background(), func(ctx context.Context, datasetID string, outcome AnonymizationOutcome) {
		gotID = datasetID
		done <- outcome
	})
	defer svc.Stop()

	require.NoError(t, svc.Submit("ds-1", input))

	select {
	case outcome := <-done:
		return gotID, outcome
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for anonymization outcome")
		return "", AnonymizationOutcome{}
	}
}

func TestAnonymizerSuccess(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte("name,age\nalice,30\nbob,25\n"), 0o644))
	script := writeScript(t, dir, "#!/bin/sh\ncp \"$1\" \"$2\"\n")

	datasetID, outcome := runAnonymizer(t, script, input)
	require.Equal(t, "ds-1", datasetID)
	require.True(t, outcome.Success)
	require.Equal(t, "anonymized_ds-1.csv", outcome.OutputPath)
	require.Equal(t, 2, outcome.RowCount)
}

func TestAnonymizerNonZeroExit(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte("name\nalice\n"), 0o644))
	script := writeScript(t, dir, "#!/bin/sh\necho 'bad input' >&2\nexit 1\n")

	_, outcome := runAnonymizer(t, script, input)
	require.False(t, outcome.Success)
	require.NotEmpty(t, outcome.Cause)
}

func TestAnonymizerMissingOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "raw.csv")
	require.NoError(t, os.WriteFile(input, []byte("name\nalice\n"), 0o644))
	// Exits 0 without producing the output artifact.
	script := writeScript(t, dir, "#!/bin/sh\nexit 0\n")

	_, outcome := runAnonymizer(t, script, input)
	require.False(t, outcome.Success)
	require.NotEmpty(t, outcome.Cause)
}

func TestAnonymizerOutputNameIsDeterministic(t *testing.T) {
	svc := NewAnonymizerService(config.AnonymizerConfig{Command: "/bin/sh"}, tabular.NewReader(), nil, nil, nil)
	require.Equal(t, "anonymized_abc.csv", svc.OutputName("abc"))
	require.Equal(t, "anonymized_abc.csv", svc.OutputName("abc"))
}
