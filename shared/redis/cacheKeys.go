package redis

import (
	"strings"
)

var (
	App     = "passport" // project code
	Env     = "dev"      // dev|stg|prod
	Version = "v1"       // schema version for easy bust
)

func join(parts ...string) string {
	return strings.Join(parts, ":")
}

func pfx() string {
	return join(App, Env, Version)
}

// NormalizeAddress lowercases a 0x account address
func NormalizeAddress(addr string) string { return strings.ToLower(addr) }

// ZkLoginKey namespaces a login-flow key per profile, e.g. passport:dev:v1:zklogin:default:session
func ZkLoginKey(profile, name string) string {
	if profile == "" {
		profile = "default"
	}
	return join(pfx(), "zklogin", profile, name)
}

// SponsorRateKey is the per-sender counter key used by the sponsorship proxy
func SponsorRateKey(sender string) string {
	return join(pfx(), "sponsor", "rate", NormalizeAddress(sender))
}
