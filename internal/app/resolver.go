package app

import "net"

// DisableResolverCache switches name resolution to the pure-Go resolver.
// It keeps no positive or negative answer cache, so a long-lived process
// re-resolves hosts on every connection attempt.
func DisableResolverCache() {
	net.DefaultResolver.PreferGo = true
}
