// genartifacts writes the placeholder CNN classifiers and precision tables embedded
// by internal/model.
//
// Every network maps windows [batch, Layers, Window] through Flatten, Gemm and
// Softmax to probabilities [batch, 2]. Weights come from a fixed seed per artifact,
// so the output is reproducible.
package main

import (
	"encoding/binary"
	"encoding/json"
	"flag"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/precision"
)

// The generator must not import internal/model, which embeds its output, so the
// graph interface and the artifact list are repeated here.
const (
	layers        = 6
	window        = 15
	windowSize    = layers * window
	outputClasses = 2
	inputName     = "windows"
	outputName    = "probabilities"
)

// artifactFile is one generated network, in internal/model ArtifactID order.
type artifactFile struct {
	name string
	// precisionTable is set for the semi-supervised networks, which ship a
	// calibration table next to the model.
	precisionTable bool
}

var artifactFiles = []artifactFile{
	{name: "2.0_cnn.onnx"},
	{name: "2.0_semi_cnn.onnx", precisionTable: true},
	{name: "2.2_cnn.onnx"},
	{name: "2.2_semi_cnn.onnx", precisionTable: true},
	{name: "Revio_semi_cnn.onnx", precisionTable: true},
}

// splitMix64 is a tiny deterministic generator.
type splitMix64 uint64

func (s *splitMix64) next() uint64 {
	*s += 0x9E3779B97F4A7C15
	z := uint64(*s)
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return z ^ (z >> 31)
}

// uniform returns a value in [lo, hi).
func (s *splitMix64) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*float64(s.next()>>11)/(1<<53)
}

// ONNX protobuf field numbers.
const (
	modelIRVersion     = 1
	modelProducerName  = 2
	modelProducerVer   = 3
	modelGraph         = 7
	modelOpsetImport   = 8
	opsetDomain        = 1
	opsetVersion       = 2
	graphNode          = 1
	graphName          = 2
	graphInitializer   = 5
	graphInput         = 11
	graphOutput        = 12
	nodeInput          = 1
	nodeOutput         = 2
	nodeName           = 3
	nodeOpType         = 4
	tensorDims         = 1
	tensorDataType     = 2
	tensorName         = 8
	tensorRawData      = 9
	valueInfoName      = 1
	valueInfoType      = 2
	typeTensorType     = 1
	tensorTypeElemType = 1
	tensorTypeShape    = 2
	shapeDim           = 1
	dimValue           = 1
	dimParam           = 2

	onnxFloat   = 1
	irVersion   = 7
	opsetLevel  = 13
	producerTag = "m6a-service"
)

func appendMessage(b []byte, field protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

func appendString(b []byte, field protowire.Number, s string) []byte {
	b = protowire.AppendTag(b, field, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendInt(b []byte, field protowire.Number, v int64) []byte {
	b = protowire.AppendTag(b, field, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func node(name, op string, inputs, outputs []string) []byte {
	var b []byte
	for _, in := range inputs {
		b = appendString(b, nodeInput, in)
	}
	for _, out := range outputs {
		b = appendString(b, nodeOutput, out)
	}
	b = appendString(b, nodeName, name)
	return appendString(b, nodeOpType, op)
}

func floatTensor(name string, dims []int64, values []float32) []byte {
	var b []byte
	for _, d := range dims {
		b = appendInt(b, tensorDims, d)
	}
	b = appendInt(b, tensorDataType, onnxFloat)
	b = appendString(b, tensorName, name)
	raw := make([]byte, 0, 4*len(values))
	for _, v := range values {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	b = protowire.AppendTag(b, tensorRawData, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}

// valueInfo describes a float tensor; string dims are symbolic.
func valueInfo(name string, dims ...any) []byte {
	var shape []byte
	for _, d := range dims {
		var dim []byte
		switch d := d.(type) {
		case string:
			dim = appendString(dim, dimParam, d)
		case int:
			dim = appendInt(dim, dimValue, int64(d))
		}
		shape = appendMessage(shape, shapeDim, dim)
	}
	tensorType := appendInt(nil, tensorTypeElemType, onnxFloat)
	tensorType = appendMessage(tensorType, tensorTypeShape, shape)
	b := appendString(nil, valueInfoName, name)
	return appendMessage(b, valueInfoType, appendMessage(nil, typeTensorType, tensorType))
}

func classifier(seed uint64) []byte {
	rng := splitMix64(seed)
	weights := make([]float32, windowSize*outputClasses)
	for i := range weights {
		weights[i] = float32(rng.uniform(-0.25, 0.25))
	}

	var graph []byte
	graph = appendMessage(graph, graphNode, node("flatten", "Flatten", []string{inputName}, []string{"flat"}))
	graph = appendMessage(graph, graphNode, node("dense", "Gemm", []string{"flat", "dense.weight", "dense.bias"}, []string{"logits"}))
	graph = appendMessage(graph, graphNode, node("softmax", "Softmax", []string{"logits"}, []string{outputName}))
	graph = appendString(graph, graphName, "m6a_cnn")
	graph = appendMessage(graph, graphInitializer, floatTensor("dense.weight", []int64{windowSize, outputClasses}, weights))
	graph = appendMessage(graph, graphInitializer, floatTensor("dense.bias", []int64{outputClasses}, []float32{0.5, -0.5}))
	graph = appendMessage(graph, graphInput, valueInfo(inputName, "batch", layers, window))
	graph = appendMessage(graph, graphOutput, valueInfo(outputName, "batch", outputClasses))

	opset := appendString(nil, opsetDomain, "")
	opset = appendInt(opset, opsetVersion, opsetLevel)

	var b []byte
	b = appendInt(b, modelIRVersion, irVersion)
	b = appendString(b, modelProducerName, producerTag)
	b = appendString(b, modelProducerVer, "1")
	b = appendMessage(b, modelGraph, graph)
	return appendMessage(b, modelOpsetImport, opset)
}

func precisionTable(seed uint64) ([]byte, error) {
	rng := splitMix64(seed)
	table := precision.Table{Columns: []string{"cnn_score", "precision_u8"}}
	level := 0.0
	for i := 0; i <= 200; i++ {
		level = math.Min(255, level+rng.uniform(0.6, 1.9))
		table.Data = append(table.Data, precision.Entry{Score: float32(float64(i) / 200), Level: uint8(level)})
	}
	data, err := json.Marshal(&table)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// generate writes every network and its precision table, if any, to dir. Seeds
// depend only on the position in artifactFiles.
func generate(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WithStack(err)
	}
	for i, art := range artifactFiles {
		path := filepath.Join(dir, art.name)
		if err := os.WriteFile(path, classifier(uint64(i+1)), 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		klog.Infof("Wrote %s", path)
		if !art.precisionTable {
			continue
		}
		data, err := precisionTable(uint64(i + 11))
		if err != nil {
			return errors.Wrapf(err, "failed to encode precision table for %s", art.name)
		}
		path = filepath.Join(dir, strings.TrimSuffix(art.name, filepath.Ext(art.name))+".json")
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return errors.Wrapf(err, "failed to write %s", path)
		}
		klog.Infof("Wrote %s", path)
	}
	return nil
}

func main() {
	out := flag.String("out", "internal/model/models", "Output directory")
	klog.InitFlags(nil)
	flag.Parse()

	if err := generate(*out); err != nil {
		klog.Fatalf("%+v", err)
	}
}
