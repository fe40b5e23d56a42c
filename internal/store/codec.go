package store

import (
	"bytes"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// encodedRun holds the JSON columns of a runs row.
type encodedRun struct {
	sources []byte
	summary []byte
	report  []byte // nil when the run carries no report
}

func encodeRun(run *model.Run) (encodedRun, error) {
	var enc encodedRun
	var err error

	sources := run.Sources
	if sources == nil {
		sources = []string{}
	}
	if enc.sources, err = json.Marshal(sources); err != nil {
		return enc, eris.Wrap(err, "marshal sources")
	}
	if enc.summary, err = json.Marshal(run.Summary); err != nil {
		return enc, eris.Wrap(err, "marshal summary")
	}
	if run.Report != nil {
		if enc.report, err = json.Marshal(run.Report); err != nil {
			return enc, eris.Wrap(err, "marshal report")
		}
	}
	return enc, nil
}

func decodeRun(r *model.Run, sources, summary, report []byte) error {
	if err := json.Unmarshal(sources, &r.Sources); err != nil {
		return eris.Wrap(err, "unmarshal sources")
	}
	if err := json.Unmarshal(summary, &r.Summary); err != nil {
		return eris.Wrap(err, "unmarshal summary")
	}
	if len(report) > 0 {
		r.Report = &model.Report{}
		if err := json.Unmarshal(report, r.Report); err != nil {
			return eris.Wrap(err, "unmarshal report")
		}
	}
	return nil
}

// decodeValue reverses json.Marshal of a resolved value. Numbers come back
// as json.Number so integers keep their exact text.
func decodeValue(b []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}
