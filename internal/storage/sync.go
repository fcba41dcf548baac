package storage

// Synced wraps a provider and marks it sync-backed. Locations resolved
// against a sync-backed provider skip existence probes entirely.
func Synced(p Provider) Provider {
	return &syncProvider{Provider: p}
}

type syncProvider struct {
	Provider
}

func (s *syncProvider) SyncBacked() bool { return true }
