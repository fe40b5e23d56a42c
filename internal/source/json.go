package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
)

// LoadJSON reads either a JSON array of source records or a single record
// object and validates each one.
func LoadJSON(ctx context.Context, r io.Reader) ([]model.SourceRecord, error) {
	br := bufio.NewReader(r)
	first, err := firstNonSpace(br)
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "json: peek")
	}

	if first != '[' {
		decoder := json.NewDecoder(br)
		decoder.UseNumber()
		var raw any
		if err := decoder.Decode(&raw); err != nil {
			return nil, eris.Wrap(err, "json: decode object")
		}
		rec, err := model.ParseSourceRecord(raw)
		if err != nil {
			return nil, err
		}
		return []model.SourceRecord{rec}, nil
	}

	itemCh, errCh := decodeJSONArray[any](ctx, br)
	var raws []any
	for item := range itemCh {
		raws = append(raws, item)
	}
	if err := <-errCh; err != nil {
		return nil, err
	}
	return model.ParseSourceRecords(raws)
}

// decodeJSONArray decodes a JSON array streaming, sending each element to a channel.
// Numbers decode as json.Number so large integers keep their exact digits.
// Both channels are closed when processing completes.
func decodeJSONArray[T any](ctx context.Context, r io.Reader) (<-chan T, <-chan error) {
	outCh := make(chan T, 64)
	errCh := make(chan error, 1)

	go func() {
		defer close(outCh)
		defer close(errCh)

		decoder := json.NewDecoder(r)
		decoder.UseNumber()

		tok, err := decoder.Token()
		if err != nil {
			if err == io.EOF {
				return
			}
			errCh <- eris.Wrap(err, "json: read opening token")
			return
		}

		delim, ok := tok.(json.Delim)
		if !ok || delim != '[' {
			errCh <- eris.Errorf("json: expected '[', got %v", tok)
			return
		}

		for decoder.More() {
			if ctx.Err() != nil {
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}

			var item T
			if err := decoder.Decode(&item); err != nil {
				errCh <- eris.Wrap(err, "json: decode element")
				return
			}

			select {
			case outCh <- item:
			case <-ctx.Done():
				errCh <- eris.Wrap(ctx.Err(), "json: context cancelled")
				return
			}
		}

		if _, err := decoder.Token(); err != nil && err != io.EOF {
			errCh <- eris.Wrap(err, "json: read closing token")
		}
	}()

	return outCh, errCh
}

func firstNonSpace(br *bufio.Reader) (byte, error) {
	for {
		b, err := br.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, br.UnreadByte()
	}
}
