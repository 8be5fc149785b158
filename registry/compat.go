package registry

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Compatible keeps the instances whose Version satisfies constraint
// (e.g. "^1.2", ">= 1.0, < 2"). An empty constraint keeps everything.
// Instances with an unparsable version are dropped.
func Compatible(instances []ServiceInstance, constraint string) ([]ServiceInstance, error) {
	if constraint == "" {
		return instances, nil
	}
	c, err := semver.NewConstraint(constraint)
	if err != nil {
		return nil, fmt.Errorf("registry: bad version constraint %q: %w", constraint, err)
	}
	out := make([]ServiceInstance, 0, len(instances))
	for _, inst := range instances {
		v, err := semver.NewVersion(inst.Version)
		if err != nil {
			continue
		}
		if c.Check(v) {
			out = append(out, inst)
		}
	}
	return out, nil
}
