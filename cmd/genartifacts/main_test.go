package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/precision"
)

func TestArtifactListMatchesModel(t *testing.T) {
	arts := model.Artifacts()
	require.Len(t, artifactFiles, len(arts))
	for i, art := range arts {
		assert.Equal(t, art.File, artifactFiles[i].name)
		assert.Equal(t, art.PrecisionJSON != "", artifactFiles[i].precisionTable, art.Label)
	}

	assert.Equal(t, model.Layers, layers)
	assert.Equal(t, model.Window, window)
	assert.Equal(t, inference.OutputClasses, outputClasses)
	assert.Equal(t, inference.InputName, inputName)
	assert.Equal(t, inference.OutputName, outputName)
}

func TestGenerateIntoEmptyDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "models")
	require.NoError(t, generate(dir))

	again := t.TempDir()
	require.NoError(t, generate(again))

	for _, art := range model.Artifacts() {
		data, err := os.ReadFile(filepath.Join(dir, art.File))
		require.NoError(t, err)
		assert.NotEmpty(t, data)
		same, err := os.ReadFile(filepath.Join(again, art.File))
		require.NoError(t, err)
		assert.Equal(t, data, same, "%s is not reproducible", art.File)
	}

	for _, name := range []string{"2.0_semi_cnn.json", "2.2_semi_cnn.json", "Revio_semi_cnn.json"} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		table, err := precision.Parse(data)
		require.NoError(t, err, name)
		assert.Len(t, table.Data, 201)
	}
	_, err := os.Stat(filepath.Join(dir, "2.2_cnn.json"))
	assert.True(t, os.IsNotExist(err))
}
