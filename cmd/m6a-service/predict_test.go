package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/precision"
)

func encodeWindows(values []float32) []byte {
	buf := make([]byte, 0, 4*len(values))
	for _, v := range values {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}
	return buf
}

func TestReadWindows(t *testing.T) {
	values := make([]float32, 2*model.WindowSize)
	values[0], values[model.WindowSize] = 1.5, -2
	windows, count, err := readWindows(bytes.NewReader(encodeWindows(values)))
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Equal(t, values, windows)

	_, _, err = readWindows(bytes.NewReader(make([]byte, 4*model.WindowSize+4)))
	assert.Error(t, err)

	windows, count, err = readWindows(bytes.NewReader(nil))
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, windows)
}

func TestWriteScores(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeScores(&buf, []float32{0.5, 0.125}, nil))
	assert.Equal(t, "0.5\n0.125\n", buf.String())

	table := precision.MustParse([]byte(`{"columns":["cnn_score","precision_u8"],"data":[[0,1],[0.25,20]]}`))
	buf.Reset()
	require.NoError(t, writeScores(&buf, []float32{0.5, 0.125}, table))
	assert.Equal(t, "0.5\t20\n0.125\t1\n", buf.String())
}

func TestPredictCommandWithMock(t *testing.T) {
	values := make([]float32, 3*model.WindowSize)
	root := newRootCmd()
	var out bytes.Buffer
	root.SetIn(bytes.NewReader(encodeWindows(values)))
	root.SetOut(&out)
	root.SetArgs([]string{"predict", "--use-mock-inference", "--chemistry=revio", "--semi", "--precision", "--batch-size=2"})
	require.NoError(t, root.Execute())

	lines := bytes.Split(bytes.TrimSpace(out.Bytes()), []byte("\n"))
	require.Len(t, lines, 3)
	for _, line := range lines {
		assert.True(t, bytes.HasPrefix(line, []byte("0.5\t")), "line %q", line)
	}
}

func TestTablesCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"tables"})
	require.NoError(t, root.Execute())
	for _, label := range []string{"2.0 semi", "2.2 semi", "Revio semi"} {
		assert.Contains(t, out.String(), label)
	}
}

func TestReleaseEngineClosesModel(t *testing.T) {
	loader := inference.NewMockLoader()
	engine := inference.NewEngine(inference.NewRegistry(loader))
	_, err := engine.Predict(context.Background(), make([]float32, model.WindowSize), 1,
		model.Configuration{Chemistry: model.Chemistry2_2})
	require.NoError(t, err)

	releaseEngine(engine)
	_, err = loader.Model.Forward(make([]float32, model.WindowSize), 1)
	assert.ErrorIs(t, err, inference.ErrForwardPass)
}
