/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

// Package libinfo reports the version of the go-authcache module the running binary was built from.
package libinfo

import (
	"debug/buildinfo"
	"regexp"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const moduleName = "github.com/acronis/go-authcache"

// PrometheusVersionLabel is the name of the const label carrying the module version.
const PrometheusVersionLabel = "authcache_version"

const unknownVersion = "v0.0.0"

// AddPrometheusVersionLabel returns a copy of labels with the module version label added.
func AddPrometheusVersionLabel(labels prometheus.Labels) prometheus.Labels {
	labelsCopy := make(prometheus.Labels, len(labels)+1)
	for k, v := range labels {
		labelsCopy[k] = v
	}
	labelsCopy[PrometheusVersionLabel] = Version()
	return labelsCopy
}

var (
	version     string
	versionOnce sync.Once
)

// Version returns the module version, or v0.0.0 if it cannot be determined (e.g. for a development build).
func Version() string {
	versionOnce.Do(func() {
		if bi, ok := debug.ReadBuildInfo(); ok {
			version = moduleVersion(bi, moduleName)
		}
		if version == "" || version == "(devel)" {
			version = unknownVersion
		}
	})
	return version
}

// moduleVersion looks the module up first as the main module (authcached binary),
// then among the dependencies (a program importing the cache).
// The module path may carry a major version suffix.
func moduleVersion(bi *buildinfo.BuildInfo, modName string) string {
	if bi == nil {
		return ""
	}
	re := regexp.MustCompile(`^` + regexp.QuoteMeta(modName) + `(/v[0-9]+)?$`)
	if re.MatchString(bi.Main.Path) {
		return bi.Main.Version
	}
	for _, dep := range bi.Deps {
		if re.MatchString(dep.Path) {
			return dep.Version
		}
	}
	return ""
}
