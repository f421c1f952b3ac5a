package model

import "strings"

// Chemistry is the sequencing-chemistry variant the reads were produced with.
type Chemistry int

const (
	Chemistry2_0 Chemistry = iota
	Chemistry2_2
	ChemistryRevio
)

//go:generate go tool enumer -type=Chemistry -trimprefix=Chemistry -transform=lower -values -text -json chemistry.go

// Configuration selects one of the embedded classifiers.
type Configuration struct {
	Chemistry Chemistry
	// Semi selects the semi-supervised network instead of the fully supervised one.
	Semi bool
}

// Mode returns "semi" or "full".
func (c Configuration) Mode() string {
	if c.Semi {
		return "semi"
	}
	return "full"
}

// Feature window geometry shared with the window extraction code: every window has
// Layers channels of Window positions.
const (
	Layers = 6
	Window = 15

	// WindowSize is the number of float32 values per window.
	WindowSize = Layers * Window
)

// Label is the human readable chemistry name used in logs and artifact labels.
func (i Chemistry) Label() string {
	switch i {
	case Chemistry2_0:
		return "2.0"
	case Chemistry2_2:
		return "2.2"
	case ChemistryRevio:
		return "Revio"
	}
	return i.String()
}

// ParseChemistry accepts the enum names ("2_2", "revio") as well as the dotted
// chemistry versions ("2.2") used on the command line.
func ParseChemistry(s string) (Chemistry, error) {
	return ChemistryString(strings.ReplaceAll(strings.TrimSpace(s), ".", "_"))
}
