package reporting

import (
	"encoding/json"
	"io"

	"github.com/ducminhle1904/pump-short-bot/internal/backtest"
	boterrors "github.com/ducminhle1904/pump-short-bot/internal/errors"
)

// DefaultJSONFormatter serializes results.
type DefaultJSONFormatter struct{}

func NewDefaultJSONFormatter() *DefaultJSONFormatter {
	return &DefaultJSONFormatter{}
}

// Format returns indented JSON for v.
func (f *DefaultJSONFormatter) Format(v interface{}) ([]byte, error) {
	return json.MarshalIndent(v, "", "  ")
}

// WriteJSON writes the full results document to path atomically.
func (f *DefaultJSONFormatter) WriteJSON(res *backtest.Results, path string) error {
	return f.write(res, path, "json")
}

// WriteBatchJSON writes one entry per job, errors included as strings.
func (f *DefaultJSONFormatter) WriteBatchJSON(results []backtest.JobResult, path string) error {
	type entry struct {
		ID       string            `json:"id"`
		Symbol   string            `json:"symbol"`
		Duration string            `json:"duration"`
		Error    string            `json:"error,omitempty"`
		Results  *backtest.Results `json:"results,omitempty"`
	}
	out := make([]entry, 0, len(results))
	for _, jr := range results {
		e := entry{ID: jr.ID, Symbol: jr.Config.Symbol, Duration: jr.Duration.String(), Results: jr.Results}
		if jr.Err != nil {
			e.Error = jr.Err.Error()
		}
		out = append(out, e)
	}
	return f.write(out, path, "batch_json")
}

func (f *DefaultJSONFormatter) write(v interface{}, path, op string) error {
	data, err := f.Format(v)
	if err != nil {
		return boterrors.NewReportError("reporting", op, err)
	}
	err = writeAtomic(path, func(w io.Writer) error {
		_, err := w.Write(append(data, '\n'))
		return err
	})
	if err != nil {
		return boterrors.NewReportError("reporting", op, err)
	}
	return nil
}
