package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestampLayouts(t *testing.T) {
	want := time.Date(2024, 3, 9, 14, 30, 15, 0, time.UTC)

	cases := map[string]string{
		"rfc3339":       "2024-03-09T14:30:15Z",
		"offset":        "2024-03-09T17:30:15+03:00",
		"python":        "2024-03-09T14:30:15",
		"python micros": "2024-03-09T14:30:15.000000",
		"space":         "2024-03-09 14:30:15",
		"unix":          "1709994615",
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := ParseTimestamp(raw)
			require.NoError(t, err)
			assert.True(t, got.Equal(want), "got %s", got)
		})
	}
}

func TestParseTimestampRejectsGarbage(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestTimestampJSON(t *testing.T) {
	var payload struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
		C Timestamp `json:"c"`
		D Timestamp `json:"d"`
	}
	raw := `{"a":"2024-03-09T14:30:15.5","b":1709994615.25,"c":null,"d":""}`
	require.NoError(t, json.Unmarshal([]byte(raw), &payload))

	assert.Equal(t, 500*time.Millisecond, time.Duration(payload.A.Nanosecond()))
	assert.Equal(t, int64(1709994615), payload.B.Unix())
	assert.True(t, payload.C.IsZero())
	assert.True(t, payload.D.IsZero())

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"a":"2024-03-09T14:30:15.5Z"`)
	assert.Contains(t, string(out), `"c":null`)
}
