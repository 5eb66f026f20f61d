package domain

import "time"

// Broadcaster is one canonical entry in the broadcaster registry. The alias
// set only grows; entries are never deleted or merged implicitly.
type Broadcaster struct {
	CanonicalName string    `db:"canonical_name" json:"canonical_name"`
	KnownAliases  []string  `db:"known_aliases"  json:"known_aliases"`
	CreatedAt     time.Time `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"     json:"updated_at"`
}

// HasAlias reports whether the broadcaster already knows the given alias
// (exact string compare; callers normalize first if they need to).
func (b *Broadcaster) HasAlias(alias string) bool {
	for _, a := range b.KnownAliases {
		if a == alias {
			return true
		}
	}
	return false
}
