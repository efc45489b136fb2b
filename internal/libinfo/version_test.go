/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"debug/buildinfo"
	"runtime/debug"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestModuleVersion(t *testing.T) {
	tests := []struct {
		name      string
		buildInfo *buildinfo.BuildInfo
		want      string
	}{
		{
			name:      "main module",
			buildInfo: &buildinfo.BuildInfo{Main: debug.Module{Path: moduleName, Version: "v1.4.0"}},
			want:      "v1.4.0",
		},
		{
			name: "dependency",
			buildInfo: &buildinfo.BuildInfo{
				Main: debug.Module{Path: "example.com/gateway", Version: "(devel)"},
				Deps: []*debug.Module{{Path: moduleName, Version: "v1.2.3"}},
			},
			want: "v1.2.3",
		},
		{
			name: "dependency with major version suffix",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "/v2", Version: "v2.0.1"}},
			},
			want: "v2.0.1",
		},
		{
			name: "similar module path is not matched",
			buildInfo: &buildinfo.BuildInfo{
				Deps: []*debug.Module{{Path: moduleName + "-extra", Version: "v1.0.0"}},
			},
			want: "",
		},
		{
			name:      "nil build info",
			buildInfo: nil,
			want:      "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, moduleVersion(tt.buildInfo, moduleName))
		})
	}
}

func TestAddPrometheusVersionLabel(t *testing.T) {
	labels := prometheus.Labels{"instance": "a"}
	got := AddPrometheusVersionLabel(labels)
	require.Equal(t, Version(), got[PrometheusVersionLabel])
	require.Equal(t, "a", got["instance"])
	require.NotContains(t, labels, PrometheusVersionLabel)
	require.NotEmpty(t, Version())
}
