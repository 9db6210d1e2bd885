package regions

import (
	"errors"
	"fmt"
	"strings"
)

// Cluster is a Riot regional routing value. Match-v5 and Account-v1 are
// served from these hosts, not from the platform hosts.
type Cluster string

const (
	Americas Cluster = "americas"
	Europe   Cluster = "europe"
	Asia     Cluster = "asia"
	Sea      Cluster = "sea"
)

var ErrUnknownRegion = errors.New("unknown region")

// Platform codes map to exactly one routing cluster. Unknown codes are
// rejected: a silently defaulted cluster turns a routing bug into a
// spurious "player not found", which is far harder to diagnose.
var clusterByPlatform = map[string]Cluster{
	"na1":  Americas,
	"br1":  Americas,
	"la1":  Americas,
	"la2":  Americas,
	"oc1":  Americas,
	"euw1": Europe,
	"eun1": Europe,
	"tr1":  Europe,
	"ru":   Europe,
	"kr":   Asia,
	"jp1":  Asia,
	"sg2":  Sea,
	"ph2":  Sea,
	"th2":  Sea,
	"tw2":  Sea,
	"vn2":  Sea,
}

// Route maps a platform code (na1, euw1, kr, ...) to its routing
// cluster. The lookup is case-insensitive.
func Route(platform string) (Cluster, error) {
	cluster, ok := clusterByPlatform[strings.ToLower(strings.TrimSpace(platform))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownRegion, platform)
	}
	return cluster, nil
}

// Valid reports whether platform is a known platform code.
func Valid(platform string) bool {
	_, ok := clusterByPlatform[strings.ToLower(strings.TrimSpace(platform))]
	return ok
}

// Platforms returns every accepted platform code.
func Platforms() []string {
	out := make([]string, 0, len(clusterByPlatform))
	for p := range clusterByPlatform {
		out = append(out, p)
	}
	return out
}
