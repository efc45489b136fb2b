/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

var errTest = errors.New("test error")

func TestViperAdapter_GetBytesCount(t *testing.T) {
	data := `
sizes:
  human: 250M
  k8s: 1Mi
  number: 1024
  negative: -1
  bad: lots
`
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(data), DataTypeYAML))

	tests := []struct {
		key     string
		want    BytesCount
		wantErr bool
	}{
		{key: "sizes.human", want: 250 * 1024 * 1024},
		{key: "sizes.k8s", want: 1024 * 1024},
		{key: "sizes.number", want: 1024},
		{key: "sizes.absent", want: 0},
		{key: "sizes.negative", wantErr: true},
		{key: "sizes.bad", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := va.GetBytesCount(tt.key)
			if tt.wantErr {
				require.ErrorContains(t, err, tt.key)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestViperAdapter_GetStringFromSet(t *testing.T) {
	va := NewViperAdapter()
	va.Set("log.level", "DEBUG")

	got, err := va.GetStringFromSet("log.level", []string{"debug", "info"}, true)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", got)

	_, err = va.GetStringFromSet("log.level", []string{"debug", "info"}, false)
	require.ErrorContains(t, err, "log.level")
}

func TestViperAdapter_GetStringSlice(t *testing.T) {
	data := `
limits:
  excludedSubjects:
    - "svc-*"
    - admin
  single: backup
`
	va := NewViperAdapter()
	require.NoError(t, va.SetFromReader(bytes.NewBufferString(data), DataTypeYAML))

	got, err := va.GetStringSlice("limits.excludedSubjects")
	require.NoError(t, err)
	require.Equal(t, []string{"svc-*", "admin"}, got)

	got, err = va.GetStringSlice("limits.single")
	require.NoError(t, err)
	require.Equal(t, []string{"backup"}, got)

	got, err = va.GetStringSlice("limits.absent")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestKeyPrefixedDataProvider(t *testing.T) {
	va := NewViperAdapter()
	dp := NewKeyPrefixedDataProvider(va, "credential")
	dp.SetDefault("bcryptCost", 10)
	dp.Set("storePath", "/tmp/subjects.yml")

	require.True(t, va.IsSet("credential.bcryptCost"))
	cost, err := dp.GetInt("bcryptCost")
	require.NoError(t, err)
	require.Equal(t, 10, cost)
	path, err := dp.GetString("storePath")
	require.NoError(t, err)
	require.Equal(t, "/tmp/subjects.yml", path)
	require.EqualError(t, dp.WrapKeyErr("bcryptCost", errTest), "credential.bcryptCost: test error")
}
