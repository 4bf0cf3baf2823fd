package ddns

// RecordLookup is the outcome of a successful record query:
// either the record was found (Found) or the zone holds no match (NotFound).
// Transport and provider failures are reported as errors instead.
type RecordLookup struct {
	id    string
	found bool
}

// NotFound is the lookup result for a query that matched no records.
var NotFound = RecordLookup{}

// Found returns a lookup result holding the record identifier id.
func Found(id string) RecordLookup {
	return RecordLookup{id: id, found: true}
}

// ID returns the record identifier and whether one was found.
func (r RecordLookup) ID() (string, bool) {
	return r.id, r.found
}

func (r RecordLookup) String() string {
	if !r.found {
		return "NotFound"
	}
	return "Found(" + r.id + ")"
}

// RecordName returns the fully qualified record name for subdomain under domain.
// "@" and "" address the zone apex.
func RecordName(subdomain, domain string) string {
	if subdomain == "" || subdomain == "@" {
		return domain
	}
	return subdomain + "." + domain
}
