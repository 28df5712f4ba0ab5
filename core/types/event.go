package types

// Event is the structured record a contract emits while its group commits.
// Type namespaces the record per contract ("auction.bid", "store.recorded");
// Attributes carry the settlement detail with addresses hex encoded and
// amounts in base units.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Attr returns one attribute value, or "" when the key is absent.
func (e *Event) Attr(key string) string {
	if e == nil {
		return ""
	}
	return e.Attributes[key]
}
