package payload

import (
	"encoding/json"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fields(t *testing.T, raw string) map[string]json.RawMessage {
	t.Helper()
	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestValidateTimestream(t *testing.T) {
	now := time.Unix(1700000000, 0)

	tests := []struct {
		name    string
		data    string
		want    int64
		wantErr error
	}{
		{name: "integer", data: `{"email_timestream": 1700000000}`, want: 1700000000},
		{name: "old timestamp has no age limit", data: `{"email_timestream": 1}`, want: 1},
		{name: "exactly now+300", data: `{"email_timestream": 1700000300}`, want: 1700000300},
		{name: "numeric string", data: `{"email_timestream": "1699999999"}`, want: 1699999999},
		{name: "padded numeric string", data: `{"email_timestream": " 42 "}`, want: 42},
		{name: "fraction truncates", data: `{"email_timestream": 1699999999.9}`, want: 1699999999},
		{name: "exponent form", data: `{"email_timestream": 1.7e9}`, want: 1700000000},

		{name: "missing", data: `{"hello": "world"}`, wantErr: ErrTimestreamMissing},
		{name: "null", data: `{"email_timestream": null}`, wantErr: ErrTimestreamMissing},
		{name: "zero", data: `{"email_timestream": 0}`, wantErr: ErrTimestreamNotPositive},
		{name: "negative", data: `{"email_timestream": -5}`, wantErr: ErrTimestreamNotPositive},
		{name: "fraction below one", data: `{"email_timestream": 0.5}`, wantErr: ErrTimestreamNotPositive},
		{name: "word", data: `{"email_timestream": "yesterday"}`, wantErr: ErrTimestreamNotPositive},
		{name: "decimal string", data: `{"email_timestream": "12.5"}`, wantErr: ErrTimestreamNotPositive},
		{name: "empty string", data: `{"email_timestream": ""}`, wantErr: ErrTimestreamNotPositive},
		{name: "boolean", data: `{"email_timestream": true}`, wantErr: ErrTimestreamNotPositive},
		{name: "object", data: `{"email_timestream": {"s": 1}}`, wantErr: ErrTimestreamNotPositive},
		{name: "array", data: `{"email_timestream": [1]}`, wantErr: ErrTimestreamNotPositive},
		{name: "one past the limit", data: `{"email_timestream": 1700000301}`, wantErr: ErrTimestreamInFuture},
		{name: "huge integer", data: `{"email_timestream": 99999999999999999999999}`, wantErr: ErrTimestreamInFuture},
		{name: "future string", data: `{"email_timestream": "1800000000"}`, wantErr: ErrTimestreamInFuture},
		{name: "signed string", data: `{"email_timestream": "+42"}`, want: 42},
		{name: "leading zeros do not count as digits", data: `{"email_timestream": "` + strings.Repeat("0", 50) + `42"}`, want: 42},
		{name: "huge exponent", data: `{"email_timestream": 1e600000000}`, wantErr: ErrTimestreamInFuture},
		{name: "huge negative exponent", data: `{"email_timestream": -1e600000000}`, wantErr: ErrTimestreamNotPositive},
		{name: "tiny exponent", data: `{"email_timestream": 1e-600000000}`, wantErr: ErrTimestreamNotPositive},
		{name: "fraction just past the limit", data: `{"email_timestream": 1700000300.5}`, want: 1700000300},
		{name: "fraction one past the limit", data: `{"email_timestream": 1700000301.0}`, wantErr: ErrTimestreamInFuture},
		{name: "oversized digit string", data: `{"email_timestream": "` + strings.Repeat("9", 1_000_000) + `"}`, wantErr: ErrTimestreamInFuture},
		{name: "oversized negative digit string", data: `{"email_timestream": "-` + strings.Repeat("9", 1_000_000) + `"}`, wantErr: ErrTimestreamNotPositive},
		{name: "oversized integer literal", data: `{"email_timestream": ` + strings.Repeat("9", 1_000_000) + `}`, wantErr: ErrTimestreamInFuture},
		{name: "oversized string with a bad digit", data: `{"email_timestream": "` + strings.Repeat("9", 100) + `x"}`, wantErr: ErrTimestreamNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := ValidateTimestream(fields(t, tt.data), now)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, ts)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ts.Int64())
		})
	}
}

func TestValidateTimestream_ErrorMessages(t *testing.T) {
	assert.Equal(t, "email_timestream is missing", ErrTimestreamMissing.Error())
	assert.Equal(t, "email_timestream must be a positive epoch integer", ErrTimestreamNotPositive.Error())
	assert.Equal(t, "email_timestream is in the future", ErrTimestreamInFuture.Error())
}

func TestValidateTimestream_LargeValuesStayCheap(t *testing.T) {
	now := time.Unix(1700000000, 0)
	inputs := []string{
		`{"email_timestream": 1e600000000}`,
		`{"email_timestream": -1e600000000}`,
		`{"email_timestream": "` + strings.Repeat("7", 1_000_000) + `"}`,
		`{"email_timestream": ` + strings.Repeat("7", 1_000_000) + `}`,
	}

	for _, in := range inputs {
		data := fields(t, in)

		var before, after runtime.MemStats
		runtime.ReadMemStats(&before)
		start := time.Now()
		_, err := ValidateTimestream(data, now)
		elapsed := time.Since(start)
		runtime.ReadMemStats(&after)

		assert.Error(t, err)
		// one copy of a 1 MB string is expected, a materialised integer is not
		assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(8<<20))
		assert.Less(t, elapsed, 500*time.Millisecond)
	}
}
