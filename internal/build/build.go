// SPDX-License-Identifier: MIT

// Package build exposes metadata embedded at compile time with linker flags:
//
//	go build -ldflags "-X audioviz/internal/build.buildName=audioviz \
//	  -X audioviz/internal/build.buildTime=2025-04-13T10:00:00Z \
//	  -X audioviz/internal/build.buildCommit=abcdef1 \
//	  -X audioviz/internal/build.buildVersion=0.1.0 \
//	  -X audioviz/internal/build.buildUuid=$(uuidgen)"
//
// Development builds set none of them and run with defaults.
package build

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

const description = "Audio source switching and spectrum visualization engine"

// Info is the build metadata.
type Info struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
	Uuid        string // Unique build identifier
	Instance    string // Unique per process
}

// Package-level variables for build information, populated by -ldflags.
var (
	buildName    string
	buildTime    string
	buildCommit  string
	buildVersion string
	buildUuid    string
	buildInfo    = defaults()
)

func defaults() *Info {
	return &Info{
		Name:        "audioviz",
		Description: description,
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
		Uuid:        "unknown",
		Instance:    uuid.NewString(),
	}
}

// Initialize validates the linker flags and copies them into the build
// info. With no flags set it keeps the development defaults. A partial set
// is an error, as is a build UUID that does not parse.
func Initialize() error {
	flags := []string{buildName, buildTime, buildCommit, buildVersion, buildUuid}
	set := 0
	for _, f := range flags {
		if f != "" {
			set++
		}
	}
	if set == 0 {
		return nil
	}

	var errs []error
	if buildName == "" {
		errs = append(errs, fmt.Errorf("BuildName is required"))
	}
	if buildTime == "" {
		errs = append(errs, fmt.Errorf("BuildTime is required"))
	}
	if buildCommit == "" {
		errs = append(errs, fmt.Errorf("BuildCommit is required"))
	}
	if buildVersion == "" {
		errs = append(errs, fmt.Errorf("BuildVersion is required"))
	}
	if buildUuid == "" {
		errs = append(errs, fmt.Errorf("BuildUuid is required"))
	} else if _, err := uuid.Parse(buildUuid); err != nil {
		errs = append(errs, fmt.Errorf("BuildUuid %q: %w", buildUuid, err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	buildInfo.Name = buildName
	buildInfo.Time = buildTime
	buildInfo.Commit = buildCommit
	buildInfo.Version = buildVersion
	buildInfo.Uuid = buildUuid
	return nil
}

// GetBuildInfo returns the current build information.
func GetBuildInfo() Info {
	return *buildInfo
}

// String is the one-line form printed by the version command.
func (i Info) String() string {
	return fmt.Sprintf("%s %s (commit %s, built %s, build %s)", i.Name, i.Version, i.Commit, i.Time, i.Uuid)
}
