package stats

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"

	"evoworld/internal/model"
)

func WriteGenerationsCSV(w io.Writer, records []model.GenerationRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing generations: %w", err)
	}
	return nil
}

func WriteOEECSV(w io.Writer, records []model.OEERecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing oee: %w", err)
	}
	return nil
}

func WriteLineageCSV(w io.Writer, records []model.LineageRecord) error {
	if err := gocsv.Marshal(records, w); err != nil {
		return fmt.Errorf("writing lineage: %w", err)
	}
	return nil
}

// Output streams per-generation and OEE rows to CSV files in a directory as
// the run progresses. A nil *Output discards everything.
type Output struct {
	dir            string
	generationFile *os.File
	oeeFile        *os.File

	generationHeaderWritten bool
	oeeHeaderWritten        bool
}

// NewOutput creates dir and its CSV files. It returns nil if dir is empty.
func NewOutput(dir string) (*Output, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	gf, err := os.Create(filepath.Join(dir, "generations.csv"))
	if err != nil {
		return nil, fmt.Errorf("creating generations.csv: %w", err)
	}
	of, err := os.Create(filepath.Join(dir, "oee.csv"))
	if err != nil {
		gf.Close()
		return nil, fmt.Errorf("creating oee.csv: %w", err)
	}
	return &Output{dir: dir, generationFile: gf, oeeFile: of}, nil
}

func (o *Output) Dir() string {
	if o == nil {
		return ""
	}
	return o.dir
}

func (o *Output) WriteGeneration(rec model.GenerationRecord) error {
	if o == nil {
		return nil
	}
	return appendCSV(o.generationFile, []model.GenerationRecord{rec}, &o.generationHeaderWritten)
}

func (o *Output) WriteOEE(rec model.OEERecord) error {
	if o == nil {
		return nil
	}
	return appendCSV(o.oeeFile, []model.OEERecord{rec}, &o.oeeHeaderWritten)
}

func (o *Output) Close() error {
	if o == nil {
		return nil
	}
	gerr := o.generationFile.Close()
	oerr := o.oeeFile.Close()
	if gerr != nil {
		return gerr
	}
	return oerr
}

// appendCSV writes the header only on the first call for a file.
func appendCSV(f *os.File, records any, headerWritten *bool) error {
	if !*headerWritten {
		if err := gocsv.Marshal(records, f); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(f.Name()), err)
		}
		*headerWritten = true
		return nil
	}
	if err := gocsv.MarshalWithoutHeaders(records, f); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(f.Name()), err)
	}
	return nil
}
