// Package kvs implements the user-facing KVS instance API: a process-wide
// pool of named instances, each built once with reconciled parameters and
// then shared by every caller, backed by a pluggable kvsbackend.Backend.
package kvs

import (
	"fmt"
	"strings"

	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// MaxInstances is the fixed size of the process-wide instance pool.
const MaxInstances = 10

// Policy controls how a KVS instance's defaults map or live map is
// populated at build time.
type Policy int

const (
	// PolicyIgnored skips loading entirely; the map starts empty.
	PolicyIgnored Policy = iota
	// PolicyOptional loads if present; a missing file yields an empty map.
	PolicyOptional
	// PolicyRequired loads and propagates any error, including a missing file.
	PolicyRequired
)

func (p Policy) String() string {
	switch p {
	case PolicyIgnored:
		return "ignored"
	case PolicyOptional:
		return "optional"
	case PolicyRequired:
		return "required"
	default:
		return "unknown"
	}
}

// ParsePolicy parses the case-insensitive strings "ignored", "optional" and
// "required" into a Policy, for configuration sources (e.g. pkg/kvsconfig's
// YAML manifest) that spell policies out as text.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "ignored":
		return PolicyIgnored, nil
	case "optional":
		return PolicyOptional, nil
	case "required":
		return PolicyRequired, nil
	default:
		return 0, fmt.Errorf("unknown policy %q", s)
	}
}

// Parameters is the resolved, structurally-comparable configuration an
// instance was built with. Two builds for the same InstanceID must
// resolve to structurally equal Parameters, or the later build fails with
// KindInstanceParametersMismatch.
type Parameters struct {
	InstanceID        kvsbackend.InstanceID
	DefaultsPolicy    Policy
	KvsLoadPolicy     Policy
	BackendName       string
	BackendParameters kvsvalue.Map
}

// Equal reports whether p and other describe the same resolved
// configuration.
func (p Parameters) Equal(other Parameters) bool {
	return p.InstanceID == other.InstanceID &&
		p.DefaultsPolicy == other.DefaultsPolicy &&
		p.KvsLoadPolicy == other.KvsLoadPolicy &&
		p.BackendName == other.BackendName &&
		p.BackendParameters.Equal(other.BackendParameters)
}
