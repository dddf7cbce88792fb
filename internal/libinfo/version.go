/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package libinfo

import (
	"runtime/debug"
	"strings"
	"sync"
)

const LibName = "go-tokenguard"

const libPath = "github.com/acronis/" + LibName

const unknownLibVersion = "v0.0.0"

var libVersion string
var libVersionOnce sync.Once

func initLibVersion() {
	buildInfo, _ := debug.ReadBuildInfo()
	if libVersion = extractLibVersion(buildInfo, libPath); libVersion == "" {
		libVersion = unknownLibVersion
	}
}

// extractLibVersion looks for the module (including its major version suffix, e.g. "/v2") among build dependencies.
func extractLibVersion(buildInfo *debug.BuildInfo, modulePath string) string {
	if buildInfo == nil {
		return ""
	}
	for _, dep := range buildInfo.Deps {
		if dep.Path == modulePath || strings.HasPrefix(dep.Path, modulePath+"/v") {
			return dep.Version
		}
	}
	return ""
}

func GetLibVersion() string {
	libVersionOnce.Do(initLibVersion)
	return libVersion
}
