package alerts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"weddingapp/internal/model"
)

func TestParseAlerts_Example(t *testing.T) {
	body := `{"alerts":[{"id":"a1","title":"Hi","body":"B","date":"2026-01-01","urgent":"1"}]}`

	got, err := ParseAlerts([]byte(body))
	require.NoError(t, err)
	assert.Equal(t, []model.Alert{
		{ID: "a1", Title: "Hi", Body: "B", Date: "2026-01-01", Urgent: true},
	}, got)
}

func TestParseAlerts_UrgentNormalization(t *testing.T) {
	tests := []struct {
		name   string
		urgent string // raw JSON, empty = field absent
		want   bool
	}{
		{"bool true", `true`, true},
		{"string true", `"true"`, true},
		{"string TRUE", `"TRUE"`, true},
		{"string 1", `"1"`, true},
		{"number 1", `1`, true},
		{"bool false", `false`, false},
		{"string false", `"false"`, false},
		{"number 0", `0`, false},
		{"empty string", `""`, false},
		{"null", `null`, false},
		{"absent", ``, false},
		{"string yes", `"yes"`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := `{"id":"x"`
			if tt.urgent != "" {
				rec += `,"urgent":` + tt.urgent
			}
			rec += `}`

			got, err := ParseAlerts([]byte(`{"alerts":[` + rec + `]}`))
			require.NoError(t, err)
			require.Len(t, got, 1)
			assert.Equal(t, tt.want, got[0].Urgent)
		})
	}
}

func TestParseAlerts_DropsMissingIDsAndKeepsOrder(t *testing.T) {
	body := `{"alerts":[
		{"id":"first","title":" One "},
		{"title":"no id"},
		{"id":"   ","title":"blank id"},
		{"id":null},
		"not an object",
		42,
		{"id":" second ","body":"two"},
		{"id":7,"date":20260101}
	]}`

	got, err := ParseAlerts([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "first", got[0].ID)
	assert.Equal(t, "One", got[0].Title)
	assert.Equal(t, "second", got[1].ID)
	assert.Equal(t, "two", got[1].Body)
	assert.Equal(t, "7", got[2].ID)
	assert.Equal(t, "20260101", got[2].Date)
}

func TestParseAlerts_DuplicateIDKeepsFirst(t *testing.T) {
	body := `{"alerts":[{"id":"dup","title":"first"},{"id":"other"},{"id":"dup","title":"second"}]}`

	got, err := ParseAlerts([]byte(body))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "first", got[0].Title)
	assert.Equal(t, "other", got[1].ID)
}

func TestParseAlerts_ShapeProblems(t *testing.T) {
	got, err := ParseAlerts([]byte(`{"error":"sheet missing"}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ParseAlerts([]byte(`{"alerts":"nope"}`))
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = ParseAlerts([]byte(`<html>Sign in</html>`))
	assert.Error(t, err)
}

func TestEncodeAlertsRoundTrip(t *testing.T) {
	in := []model.Alert{{ID: "x", Title: "T", Urgent: true}, {ID: "y"}}

	data, err := EncodeAlerts(in)
	require.NoError(t, err)

	out, err := ParseAlerts(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	empty, err := EncodeAlerts(nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"alerts":[]}`, string(empty))
}
