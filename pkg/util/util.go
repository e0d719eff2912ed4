/*
Copyright 2025 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package util

import (
	"fmt"
	"regexp"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gitlab.com/davidxarnold/nodecreds/pkg/core"
)

// SetupLogger sets configuration for the default logger
func SetupLogger() (err error) {
	var (
		lf = strings.ToLower(viper.GetString("output"))
		ll = viper.GetString("log-level")
	)

	// Set log format
	switch lf {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		log.SetFormatter(&log.TextFormatter{
			DisableLevelTruncation: true,
		})
	}

	if ll == "" {
		return nil
	}
	level, err := log.ParseLevel(ll)
	if err != nil {
		return fmt.Errorf("%w: log level %q", core.ErrInvalidArgument, ll)
	}
	log.SetLevel(level)
	return nil
}

// ParseProviderID returns the cloud provider and associated info.
// An id without a scheme yields an empty provider and the id as its only part.
func ParseProviderID(pi string) (cp string, id []string) {
	scheme, rest, ok := strings.Cut(pi, ":")
	if !ok {
		return "", []string{pi}
	}
	return scheme, strings.Split(strings.TrimPrefix(rest, "//"), "/")
}

// Target identifies a node on a specific provider.
type Target struct {
	Provider string
	ID       string
	Region   string
}

// TargetFromProviderID converts a Kubernetes provider ID into a fetch target.
// aws:///us-west-2a/i-123 becomes {aws, i-123, us-west-2} and
// gce://project/zone/name becomes {gce, project/zone/name}.
func TargetFromProviderID(pi string) (Target, error) {
	cp, parts := ParseProviderID(pi)
	switch cp {
	case "aws":
		// ["", zone, instance]
		if len(parts) < 2 || parts[len(parts)-1] == "" {
			return Target{}, fmt.Errorf("%w: aws provider id %q", core.ErrInvalidArgument, pi)
		}
		t := Target{Provider: cp, ID: parts[len(parts)-1]}
		if len(parts) >= 3 {
			t.Region = regionFromZone(parts[len(parts)-2])
		}
		return t, nil
	case "gce":
		if len(parts) != 3 {
			return Target{}, fmt.Errorf("%w: gce provider id %q", core.ErrInvalidArgument, pi)
		}
		return Target{Provider: cp, ID: strings.Join(parts, "/")}, nil
	case "":
		return Target{}, fmt.Errorf("%w: %q is not a provider id", core.ErrInvalidArgument, pi)
	default:
		return Target{}, fmt.Errorf("%w: unsupported provider %q", core.ErrInvalidArgument, cp)
	}
}

// awsRegionPrefix matches the region a zone belongs to: availability zones
// (us-west-2a), Local Zones (us-west-2-lax-1a) and Wavelength zones
// (us-east-1-wl1-bos-wlz-1) all start with it.
var awsRegionPrefix = regexp.MustCompile(`^[a-z]{2}(-gov|-iso[a-z]*)?-[a-z]+-[0-9]+`)

// regionFromZone returns the region of an AWS zone, or "" when zone does not
// look like one so the shared config region applies.
func regionFromZone(zone string) string {
	return awsRegionPrefix.FindString(zone)
}
