package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	appLog "weddingapp/internal/log"
	"weddingapp/internal/model"
)

// envelope is the wire shape shared by the remote source and the cache.
type envelope struct {
	Alerts json.RawMessage `json:"alerts"`
}

// ParseAlerts decodes a `{"alerts": [...]}` payload and validates every
// element into a model.Alert.
//
//   - An undecodable body is an error.
//   - A missing or non-array "alerts" field yields an empty list.
//   - Elements that are not objects, or whose trimmed id is empty, are dropped.
//   - A repeated id keeps its first occurrence; source order is preserved.
func ParseAlerts(body []byte) ([]model.Alert, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("alerts: decode payload: %w", err)
	}

	var items []json.RawMessage
	if len(env.Alerts) == 0 || json.Unmarshal(env.Alerts, &items) != nil {
		return []model.Alert{}, nil
	}

	out := make([]model.Alert, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for i, raw := range items {
		a, ok := parseAlert(raw)
		if !ok {
			appLog.Debug("alerts: dropping invalid record", "index", i)
			continue
		}
		if _, dup := seen[a.ID]; dup {
			appLog.Warn("alerts: duplicate id, keeping first", "id", a.ID, "index", i)
			continue
		}
		seen[a.ID] = struct{}{}
		out = append(out, a)
	}
	return out, nil
}

// EncodeAlerts renders alerts in the same envelope ParseAlerts accepts.
func EncodeAlerts(list []model.Alert) ([]byte, error) {
	if list == nil {
		list = []model.Alert{}
	}
	return json.Marshal(struct {
		Alerts []model.Alert `json:"alerts"`
	}{Alerts: list})
}

func parseAlert(raw json.RawMessage) (model.Alert, bool) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	// Keep numbers in their source text form ("42", not "4.2e+01").
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil || fields == nil {
		return model.Alert{}, false
	}

	id := textOf(fields["id"])
	if id == "" {
		return model.Alert{}, false
	}
	return model.Alert{
		ID:     id,
		Title:  textOf(fields["title"]),
		Body:   textOf(fields["body"]),
		Date:   textOf(fields["date"]),
		Urgent: IsUrgent(fields["urgent"]),
	}, true
}

// textOf renders a scalar JSON value as trimmed text. Empty-ish values
// (null, false, 0) and composites become "".
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if f, err := t.Float64(); err == nil && f == 0 {
			return ""
		}
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return ""
	default:
		return ""
	}
}

// IsUrgent applies the loose urgency rule of the spreadsheet source:
// true, "true" (any case), "1" and the number 1 are urgent; anything else
// is not.
func IsUrgent(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		s := strings.TrimSpace(t)
		return s == "1" || strings.EqualFold(s, "true")
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 1
	case float64:
		return t == 1
	default:
		return false
	}
}
