/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseRate(t *testing.T) {
	tests := []struct {
		in      string
		want    Rate
		wantErr bool
	}{
		{in: "10/s", want: Rate{Count: 10, Duration: time.Second}},
		{in: "100/m", want: Rate{Count: 100, Duration: time.Minute}},
		{in: " 5 / H ", want: Rate{Count: 5, Duration: time.Hour}},
		{in: "", wantErr: true},
		{in: "10", wantErr: true},
		{in: "0/s", wantErr: true},
		{in: "ten/s", wantErr: true},
		{in: "10/d", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseRate(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestRate_String(t *testing.T) {
	require.Equal(t, "", Rate{}.String())
	require.Equal(t, "10/s", Rate{Count: 10, Duration: time.Second}.String())
	require.Equal(t, "3/h", Rate{Count: 3, Duration: time.Hour}.String())
	require.Equal(t, "3/2s", Rate{Count: 3, Duration: 2 * time.Second}.String())
}

func TestNewLimiter(t *testing.T) {
	rate := Rate{Count: 1, Duration: time.Second}

	lim, err := NewLimiter(AlgLeakyBucket, rate, 0, 10)
	require.NoError(t, err)
	require.IsType(t, &LeakyBucketLimiter{}, lim)

	lim, err = NewLimiter(AlgSlidingWindow, rate, 0, 10)
	require.NoError(t, err)
	require.IsType(t, &SlidingWindowLimiter{}, lim)

	_, err = NewLimiter("token_bucket", rate, 0, 10)
	require.Error(t, err)
}
