package engagement

import (
	"errors"

	errs "engagedl/pkg/errors"
	"engagedl/pkg/storage"
	"github.com/tidwall/gjson"
)

var errUnspecified = errors.New("batch failed")

// BatchResult is the outcome of one submission: Ok with the JSON payload
// or Failed with the reason.
type BatchResult struct {
	payload []byte
	err     error
}

// Ok wraps a successful payload
func Ok(payload []byte) BatchResult {
	return BatchResult{payload: payload}
}

// Failed wraps a failure reason
func Failed(err error) BatchResult {
	if err == nil {
		err = errUnspecified
	}
	return BatchResult{err: err}
}

// IsOK reports whether the submission succeeded
func (r BatchResult) IsOK() bool {
	return r.err == nil
}

// Payload returns the response body of a successful submission
func (r BatchResult) Payload() []byte {
	return r.payload
}

// Err returns the failure reason, nil when Ok
func (r BatchResult) Err() error {
	return r.err
}

// ParseRows extracts one row per identifier key of user_groups, in the
// order the keys appear in the response. Counts may be numbers or numeric
// strings; absent counts are zero.
func ParseRows(payload []byte) ([]storage.Row, error) {
	if !gjson.ValidBytes(payload) {
		return nil, errs.New(errs.ErrorTypeParsing, "response is not valid JSON")
	}
	groups := gjson.GetBytes(payload, "user_groups")
	if !groups.Exists() {
		return nil, errs.New(errs.ErrorTypeParsing, "response has no user_groups")
	}
	if !groups.IsObject() {
		return nil, errs.New(errs.ErrorTypeParsing, "user_groups is not an object")
	}

	var rows []storage.Row
	groups.ForEach(func(key, value gjson.Result) bool {
		rows = append(rows, storage.Row{
			ID:        key.String(),
			Favorites: value.Get(string(Favorites)).Int(),
			Replies:   value.Get(string(Replies)).Int(),
			Retweets:  value.Get(string(Retweets)).Int(),
		})
		return true
	})
	return rows, nil
}

// MissingRows returns a zero-count row for every id with no row in rows,
// in batch order.
func MissingRows(ids []string, rows []storage.Row) []storage.Row {
	present := make(map[string]bool, len(rows))
	for _, r := range rows {
		present[r.ID] = true
	}
	var missing []storage.Row
	for _, id := range ids {
		if !present[id] {
			present[id] = true
			missing = append(missing, storage.Row{ID: id})
		}
	}
	return missing
}
