package main

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"

	"github.com/fiberseq/m6a-service/internal/batch"
	"github.com/fiberseq/m6a-service/internal/inference"
	"github.com/fiberseq/m6a-service/internal/model"
	"github.com/fiberseq/m6a-service/internal/precision"
)

func newPredictCmd() *cobra.Command {
	var (
		input, output string
		withPrecision bool
	)
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Score windows stored as little-endian float32 [count, layers, window]",
		Long: fmt.Sprintf("Reads windows of %d layers x %d positions as raw little-endian float32 values\n"+
			"and writes one score per line, index-aligned with the input windows.", model.Layers, model.Window),
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, mc, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if input != "-" {
				f, err := os.Open(input)
				if err != nil {
					return errors.Wrapf(err, "failed to open %s", input)
				}
				defer f.Close()
				in = f
			}
			windows, count, err := readWindows(in)
			if err != nil {
				return err
			}

			var table *precision.Table
			if withPrecision {
				if table, err = model.PrecisionTableFor(mc); err != nil {
					klog.Fatalf("Embedded precision table is corrupt: %+v", err)
				}
				if table == nil {
					return errors.Errorf("the %s CNN has no precision table, use --semi", model.Resolve(mc).Label)
				}
			}

			engine := setupEngine(cmd.Context(), cfg, mc)
			defer releaseEngine(engine)
			scores, err := batch.New(engine, mc, cfg.BatchSize, cfg.Workers).ScoreAll(cmd.Context(), windows, count)
			if inference.IsFatal(err) {
				klog.Fatalf("Unable to score windows: %+v", err)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return errors.Wrapf(err, "failed to create %s", output)
				}
				defer f.Close()
				out = f
			}
			return writeScores(out, scores, table)
		},
	}
	f := cmd.Flags()
	f.StringVarP(&input, "input", "i", "-", "Windows file, - for stdin")
	f.StringVarP(&output, "output", "o", "-", "Scores file, - for stdout")
	f.BoolVar(&withPrecision, "precision", false, "Add the calibrated precision level as a second column")
	return cmd
}

// readWindows reads little-endian float32 values until EOF.
func readWindows(r io.Reader) ([]float32, int, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, 0, errors.Wrap(err, "failed to read windows")
	}
	const windowBytes = 4 * model.WindowSize
	if len(data)%windowBytes != 0 {
		return nil, 0, errors.Errorf("input has %d bytes, not a multiple of the %d bytes of a window", len(data), windowBytes)
	}
	windows := make([]float32, len(data)/4)
	for i := range windows {
		windows[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return windows, len(data) / windowBytes, nil
}

// writeScores writes one score per line, followed by its precision level when
// table is not nil.
func writeScores(w io.Writer, scores []float32, table *precision.Table) error {
	bw := bufio.NewWriter(w)
	line := make([]byte, 0, 32)
	for _, s := range scores {
		line = strconv.AppendFloat(line[:0], float64(s), 'g', -1, 32)
		if table != nil {
			line = append(line, '\t')
			line = strconv.AppendUint(line, uint64(table.Lookup(s)), 10)
		}
		line = append(line, '\n')
		if _, err := bw.Write(line); err != nil {
			return errors.Wrap(err, "failed to write scores")
		}
	}
	return errors.Wrap(bw.Flush(), "failed to write scores")
}
