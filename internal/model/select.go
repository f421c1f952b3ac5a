package model

import (
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/precision"
)

// selection maps [Chemistry][Semi] to an artifact. Revio has no fully supervised
// network of its own and reuses the 2.2 one.
var selection = [...][2]ArtifactID{
	Chemistry2_0:   {Artifact2_0Full, Artifact2_0Semi},
	Chemistry2_2:   {Artifact2_2Full, Artifact2_2Semi},
	ChemistryRevio: {Artifact2_2Full, ArtifactRevioSemi},
}

// Resolve returns the artifact for cfg without logging. It panics on a Chemistry
// outside the enum.
func Resolve(cfg Configuration) Artifact {
	if !cfg.Chemistry.IsAChemistry() {
		panic(errors.Errorf("invalid chemistry %d", int(cfg.Chemistry)))
	}
	mode := 0
	if cfg.Semi {
		mode = 1
	}
	return artifacts[selection[cfg.Chemistry][mode]]
}

// Select resolves cfg to its artifact and logs the choice.
func Select(cfg Configuration) Artifact {
	art := Resolve(cfg)
	klog.Infof("Loading CNN model for %s chemistry (%s)", cfg.Chemistry.Label(), art.Label)
	if cfg.Semi {
		klog.Info("Using semi-supervised CNN")
	}
	return art
}

// PrecisionTableFor parses the calibration table that ships with the artifact
// selected by cfg. It returns nil, nil when the artifact has none.
func PrecisionTableFor(cfg Configuration) (*precision.Table, error) {
	art := Resolve(cfg)
	if art.PrecisionJSON == "" {
		return nil, nil
	}
	table, err := precision.Parse([]byte(art.PrecisionJSON))
	if err != nil {
		return nil, errors.WithMessagef(err, "precision table for %q", art.Label)
	}
	return table, nil
}

// PrecisionTables returns the embedded calibration payloads keyed by artifact label.
func PrecisionTables() map[string]string {
	tables := make(map[string]string)
	for _, art := range artifacts {
		if art.PrecisionJSON != "" {
			tables[art.Label] = art.PrecisionJSON
		}
	}
	return tables
}
