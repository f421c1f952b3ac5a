package model

import (
	_ "embed"
)

//go:generate go run ../../cmd/genartifacts -out models

// ArtifactID identifies one of the embedded classifiers.
type ArtifactID int

const (
	Artifact2_0Full ArtifactID = iota
	Artifact2_0Semi
	Artifact2_2Full
	Artifact2_2Semi
	ArtifactRevioSemi
)

// Artifact is a serialized ONNX classifier compiled into the binary.
type Artifact struct {
	ID ArtifactID
	// Label names the chemistry and supervision mode, e.g. "2.2 semi".
	Label string
	// File is the embedded file name, used as the staging file prefix.
	File  string
	Bytes []byte
	// PrecisionJSON is the calibration table shipped with the artifact, empty for
	// fully supervised networks.
	PrecisionJSON string
}

func (id ArtifactID) String() string { return artifacts[id].Label }

var (
	//go:embed models/2.0_cnn.onnx
	cnn2_0 []byte

	//go:embed models/2.0_semi_cnn.onnx
	semi2_0 []byte

	//go:embed models/2.2_cnn.onnx
	cnn2_2 []byte

	//go:embed models/2.2_semi_cnn.onnx
	semi2_2 []byte

	//go:embed models/Revio_semi_cnn.onnx
	semiRevio []byte

	//go:embed models/2.0_semi_cnn.json
	semiJSON2_0 string

	//go:embed models/2.2_semi_cnn.json
	semiJSON2_2 string

	//go:embed models/Revio_semi_cnn.json
	semiJSONRevio string
)

// artifacts is indexed by ArtifactID.
var artifacts = [...]Artifact{
	Artifact2_0Full:   {ID: Artifact2_0Full, Label: "2.0 full", File: "2.0_cnn.onnx", Bytes: cnn2_0},
	Artifact2_0Semi:   {ID: Artifact2_0Semi, Label: "2.0 semi", File: "2.0_semi_cnn.onnx", Bytes: semi2_0, PrecisionJSON: semiJSON2_0},
	Artifact2_2Full:   {ID: Artifact2_2Full, Label: "2.2 full", File: "2.2_cnn.onnx", Bytes: cnn2_2},
	Artifact2_2Semi:   {ID: Artifact2_2Semi, Label: "2.2 semi", File: "2.2_semi_cnn.onnx", Bytes: semi2_2, PrecisionJSON: semiJSON2_2},
	ArtifactRevioSemi: {ID: ArtifactRevioSemi, Label: "Revio semi", File: "Revio_semi_cnn.onnx", Bytes: semiRevio, PrecisionJSON: semiJSONRevio},
}

// Artifacts returns every embedded classifier, ordered by ArtifactID.
func Artifacts() []Artifact {
	out := make([]Artifact, len(artifacts))
	copy(out, artifacts[:])
	return out
}
