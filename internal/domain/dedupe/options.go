package dedupe

// Option applies a configuration option to the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithSeen pre-records names, e.g. stations completed by an earlier run.
func WithSeen(names ...string) Option {
	return func(d *inMemoryDeduper) {
		for _, n := range names {
			if _, ok := d.seen[n]; !ok {
				d.seen[n] = struct{}{}
				d.size.Add(1)
			}
		}
	}
}
