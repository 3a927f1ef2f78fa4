// Package upstream implements the gateway's fall-through to a real
// CouchDB instance: per-database read-through and read-only policy, a
// resty-based passthrough client, and a kivik-based startup probe.
package upstream

// Policy decides, per database, whether a request should fall through to
// a real CouchDB instance instead of (or in addition to) being served
// from MongoDB.
type Policy struct {
	ReadThrough bool
	ReadOnly    bool

	readThroughDatabases map[string]struct{}
	readOnlyDatabases    map[string]struct{}
	mappings             map[string]string
}

// NewPolicy builds a Policy from the configuration's global flags, the
// per-database override lists, and the db-name mapping table.
func NewPolicy(readThrough, readOnly bool, readThroughDatabases, readOnlyDatabases []string, mappings map[string]string) *Policy {
	p := &Policy{
		ReadThrough:          readThrough,
		ReadOnly:             readOnly,
		readThroughDatabases: toSet(readThroughDatabases),
		readOnlyDatabases:    toSet(readOnlyDatabases),
		mappings:             mappings,
	}
	return p
}

func toSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, v := range list {
		set[v] = struct{}{}
	}
	return set
}

// ShouldReadThrough reports whether a view miss (or other read-path
// fallback) for db should be forwarded to CouchDB.
func (p *Policy) ShouldReadThrough(db string) bool {
	if p == nil {
		return false
	}
	if p.ReadThrough {
		return true
	}
	_, ok := p.readThroughDatabases[db]
	return ok
}

// IsReadOnly reports whether writes against db should be forwarded to
// CouchDB instead of being applied to MongoDB.
func (p *Policy) IsReadOnly(db string) bool {
	if p == nil {
		return false
	}
	if p.ReadOnly {
		return true
	}
	_, ok := p.readOnlyDatabases[db]
	return ok
}

// MapDB translates a MongoDB database name to the CouchDB database name
// it should be forwarded under, falling back to the name unchanged when
// no mapping is configured.
func (p *Policy) MapDB(db string) string {
	if p == nil {
		return db
	}
	if mapped, ok := p.mappings[db]; ok {
		return mapped
	}
	return db
}
