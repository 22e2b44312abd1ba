// Package kvsconfig loads a YAML manifest describing the set of KVS
// instances an application wants built at startup, as a convenience layer
// on top of kvs.Builder. Nothing in pkg/kvs depends on this package; the
// typed builder remains the primary way to build an instance.
package kvsconfig

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/qorix-group/kvs/pkg/kvs"
	"github.com/qorix-group/kvs/pkg/kvsbackend"
	"github.com/qorix-group/kvs/pkg/kvsvalue"
)

// BackendEntry describes the backend section of one manifest entry:
// "name" selects the registered backend, and every key under "options" is
// converted with kvsvalue.From and passed as a backend parameter (e.g.
// "working_dir", "snapshot_max_count" for the JSON backend). Keys beside
// "name" outside "options" are not read.
type BackendEntry struct {
	Name    string                 `yaml:"name"`
	Options map[string]interface{} `yaml:"options"`
}

// ManifestEntry is one instance's configuration as spelled out in the
// manifest file.
type ManifestEntry struct {
	InstanceID     int          `yaml:"instance_id"`
	DefaultsPolicy string       `yaml:"defaults_policy"`
	KvsLoadPolicy  string       `yaml:"kvs_load_policy"`
	Backend        BackendEntry `yaml:"backend"`
}

// Manifest is the top-level document shape: a flat list of instances to
// build.
type Manifest struct {
	Instances []ManifestEntry `yaml:"instances"`
}

// LoadManifest reads and parses the YAML manifest at path and returns a
// ready-to-Build *kvs.Builder for every listed instance, in file order.
// Unset "defaults_policy"/"kvs_load_policy" fields resolve to the
// builder's own defaults (PolicyOptional).
func LoadManifest(path string) ([]*kvs.Builder, error) {
	const op = "kvsconfig.LoadManifest"

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: read %s: %w", op, path, err)
	}

	var manifest Manifest
	if err := yaml.Unmarshal(raw, &manifest); err != nil {
		return nil, fmt.Errorf("%s: parse %s: %w", op, path, err)
	}

	builders := make([]*kvs.Builder, 0, len(manifest.Instances))
	for i, entry := range manifest.Instances {
		builder, err := entry.toBuilder()
		if err != nil {
			return nil, fmt.Errorf("%s: instance %d (index %d): %w", op, entry.InstanceID, i, err)
		}
		builders = append(builders, builder)
	}
	return builders, nil
}

func (e ManifestEntry) toBuilder() (*kvs.Builder, error) {
	if e.Backend.Name == "" {
		return nil, fmt.Errorf("backend.name is required")
	}

	backendParams := kvsvalue.Map{"name": kvsvalue.Str(e.Backend.Name)}
	for k, v := range e.Backend.Options {
		value, err := kvsvalue.From(v)
		if err != nil {
			return nil, fmt.Errorf("backend option %q: %w", k, err)
		}
		backendParams[k] = value
	}

	builder := kvs.NewBuilder(kvsbackend.InstanceID(e.InstanceID)).BackendParameters(backendParams)

	if e.DefaultsPolicy != "" {
		policy, err := kvs.ParsePolicy(e.DefaultsPolicy)
		if err != nil {
			return nil, fmt.Errorf("defaults_policy: %w", err)
		}
		builder = builder.DefaultsPolicy(policy)
	}
	if e.KvsLoadPolicy != "" {
		policy, err := kvs.ParsePolicy(e.KvsLoadPolicy)
		if err != nil {
			return nil, fmt.Errorf("kvs_load_policy: %w", err)
		}
		builder = builder.KvsLoadPolicy(policy)
	}

	return builder, nil
}
