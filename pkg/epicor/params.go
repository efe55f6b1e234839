package epicor

import (
	"encoding/json"

	"github.com/rotisserie/eris"
)

// templateParameters extracts the "parameters" object from a GetNew*
// response. The service returns a populated dataset template there, and the
// same shape is what the matching Update call expects back.
func templateParameters(body []byte) (map[string]any, error) {
	var resp struct {
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, eris.Wrap(err, "decode template response")
	}
	if resp.Parameters == nil {
		return nil, eris.New("template response has no parameters")
	}
	return resp.Parameters, nil
}

// firstRow returns the first row of the named table inside a dataset
// template.
func firstRow(params map[string]any, table string) (map[string]any, bool) {
	ds, ok := params["ds"].(map[string]any)
	if !ok {
		return nil, false
	}
	rows, ok := ds[table].([]any)
	if !ok || len(rows) == 0 {
		return nil, false
	}
	row, ok := rows[0].(map[string]any)
	return row, ok
}
