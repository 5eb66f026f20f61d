package lexicon

import "github.com/screenwire/bars/internal/domain"

// Built-in vocabularies. Deployments can replace any list via config; these
// cover the mainstream trade-press beat well enough to bootstrap.

// DefaultBroadcasters returns the seed list of broadcaster and platform
// names. The registry grows beyond this at runtime; the list only feeds the
// lexicon fallback when the recognizer is unavailable.
func DefaultBroadcasters() []string {
	return []string{
		"Netflix", "Amazon", "Prime Video", "Amazon Prime Video",
		"Disney", "Disney+", "Hulu", "HBO", "HBO Max", "Max",
		"Apple TV+", "Apple TV Plus", "Paramount+", "Paramount Plus",
		"Paramount", "Peacock", "Showtime", "Starz", "AMC",
		"NBC", "CBS", "ABC", "Fox", "The CW",
		"BBC", "BBC One", "BBC Two", "BBC Three", "ITV", "ITVX",
		"Channel 4", "Channel 5", "Sky", "Sky Atlantic",
		"Canal+", "France Televisions", "TF1", "M6", "Arte",
		"ZDF", "ARD", "RTL", "ProSieben", "RAI", "Mediaset",
		"RTVE", "Atresmedia", "Movistar+",
		"NHK", "TV Asahi", "Fuji TV", "TBS",
		"CBC", "Crave", "Corus",
		"Nine Network", "Seven Network", "Network 10", "Stan", "Foxtel", "ABC Australia",
		"Telemundo", "Univision", "Globo", "Globoplay", "Televisa", "ViX",
		"Discovery", "Discovery+", "National Geographic", "A&E", "History Channel",
		"Lifetime", "Hallmark Channel", "BET", "MTV", "Nickelodeon",
		"Cartoon Network", "Adult Swim", "Comedy Central", "Syfy", "USA Network",
		"TNT", "TBS Network", "FX", "Freeform", "Bravo", "E!",
		"Tubi", "Pluto TV", "Roku Channel", "Crunchyroll",
	}
}

// DefaultNonBroadcasterOrgs returns organizations that show up constantly
// in deal coverage but are never the commissioning party: trade outlets,
// wire services, markets, and talent agencies.
func DefaultNonBroadcasterOrgs() []string {
	return []string{
		"Variety", "Deadline", "The Hollywood Reporter", "Hollywood Reporter",
		"The Wrap", "TheWrap", "IndieWire", "Screen Daily", "Screen International",
		"Broadcast", "C21Media", "C21", "TBI", "Television Business International",
		"Reuters", "Bloomberg", "Associated Press", "AP", "AFP",
		"The New York Times", "The Guardian", "BBC News",
		"MIPCOM", "MIPTV", "NATPE", "Series Mania", "Content London",
		"Berlinale", "Cannes", "Sundance", "Toronto International Film Festival",
		"CAA", "WME", "UTA", "Gersh", "Ofcom", "FCC",
	}
}

// DefaultDealKeywords returns the deal-type trigger phrases with their
// signal strengths. Inflections are listed explicitly; matching is exact
// on normalized phrases, not stemmed.
func DefaultDealKeywords() map[domain.DealType][]DealPhrase {
	return map[domain.DealType][]DealPhrase{
		domain.DealTypeAcquisition: {
			{Phrase: "acquires", Strength: 0.9},
			{Phrase: "acquired", Strength: 0.9},
			{Phrase: "acquisition", Strength: 0.85},
			{Phrase: "acquiring", Strength: 0.8},
			{Phrase: "picks up", Strength: 0.75},
			{Phrase: "picked up", Strength: 0.75},
			{Phrase: "snaps up", Strength: 0.7},
			{Phrase: "snapped up", Strength: 0.7},
			{Phrase: "buys", Strength: 0.65},
			{Phrase: "bought", Strength: 0.6},
			{Phrase: "boards", Strength: 0.5},
		},
		domain.DealTypeRenewal: {
			{Phrase: "renews", Strength: 0.95},
			{Phrase: "renewed", Strength: 0.95},
			{Phrase: "renewal", Strength: 0.9},
			{Phrase: "renewing", Strength: 0.85},
			{Phrase: "recommissions", Strength: 0.85},
			{Phrase: "recommissioned", Strength: 0.85},
			{Phrase: "returns for", Strength: 0.6},
			{Phrase: "returning for", Strength: 0.6},
			{Phrase: "another season", Strength: 0.55},
		},
		domain.DealTypeCoProduction: {
			{Phrase: "co production", Strength: 0.9},
			{Phrase: "co produces", Strength: 0.85},
			{Phrase: "co produced", Strength: 0.85},
			{Phrase: "co producing", Strength: 0.8},
			{Phrase: "co commission", Strength: 0.8},
			{Phrase: "co commissioned", Strength: 0.8},
			{Phrase: "partners with", Strength: 0.55},
			{Phrase: "partnership with", Strength: 0.5},
			{Phrase: "teams with", Strength: 0.5},
			{Phrase: "teams up with", Strength: 0.5},
		},
		domain.DealTypeLicensing: {
			{Phrase: "licenses", Strength: 0.85},
			{Phrase: "licensed", Strength: 0.85},
			{Phrase: "licensing deal", Strength: 0.85},
			{Phrase: "licensing agreement", Strength: 0.85},
			{Phrase: "licensing", Strength: 0.7},
			{Phrase: "rights deal", Strength: 0.7},
			{Phrase: "sells rights", Strength: 0.7},
			{Phrase: "sold rights", Strength: 0.7},
			{Phrase: "sold to", Strength: 0.55},
			{Phrase: "secures rights", Strength: 0.65},
		},
		domain.DealTypeOutputDeal: {
			{Phrase: "output deal", Strength: 0.95},
			{Phrase: "output agreement", Strength: 0.9},
			{Phrase: "output pact", Strength: 0.85},
			{Phrase: "first look deal", Strength: 0.8},
			{Phrase: "first look pact", Strength: 0.8},
			{Phrase: "overall deal", Strength: 0.7},
			{Phrase: "multi year deal", Strength: 0.55},
		},
		domain.DealTypeOther: {
			{Phrase: "commissions", Strength: 0.6},
			{Phrase: "commissioned", Strength: 0.6},
			{Phrase: "greenlights", Strength: 0.6},
			{Phrase: "greenlit", Strength: 0.6},
			{Phrase: "orders", Strength: 0.5},
			{Phrase: "ordered", Strength: 0.5},
			{Phrase: "develops", Strength: 0.45},
			{Phrase: "in development", Strength: 0.45},
			{Phrase: "options", Strength: 0.4},
			{Phrase: "optioned", Strength: 0.4},
			{Phrase: "signs deal", Strength: 0.5},
			{Phrase: "inks deal", Strength: 0.5},
			{Phrase: "strikes deal", Strength: 0.5},
		},
	}
}

// DefaultGenreKeywords maps display labels to trigger phrases.
func DefaultGenreKeywords() map[string][]string {
	return map[string][]string{
		"animation":   {"animated", "animation", "anime", "animated series"},
		"drama":       {"drama", "drama series", "scripted drama", "limited series", "miniseries"},
		"comedy":      {"comedy", "sitcom", "comedy series", "dramedy"},
		"documentary": {"documentary", "docuseries", "docu series", "factual", "true crime"},
		"reality":     {"reality", "reality series", "unscripted", "dating show", "competition series"},
		"kids":        {"kids", "children s", "preschool", "family entertainment"},
		"crime":       {"crime drama", "crime thriller", "police procedural", "detective series"},
		"thriller":    {"thriller", "psychological thriller", "suspense series"},
		"sci-fi":      {"sci fi", "science fiction", "fantasy series", "dystopian"},
		"sports":      {"sports documentary", "sports rights", "live sports"},
	}
}

// DefaultRegionKeywords maps display labels to trigger phrases.
func DefaultRegionKeywords() map[string][]string {
	return map[string][]string{
		"Latin America":  {"latin america", "latam", "latin american"},
		"North America":  {"north america", "united states", "u s", "canada", "north american"},
		"Europe":         {"europe", "european", "emea"},
		"United Kingdom": {"uk", "united kingdom", "britain", "british isles"},
		"Asia-Pacific":   {"asia", "asia pacific", "apac", "southeast asia", "australia", "new zealand"},
		"Middle East":    {"middle east", "mena"},
		"Africa":         {"africa", "african", "sub saharan africa"},
		"Worldwide":      {"worldwide", "global", "globally", "international", "internationally", "all territories"},
	}
}

// ListsFromConfig converts config-shaped string maps into Lists. Deal
// phrases supplied via config all get defaultConfigStrength because YAML
// lists carry no strengths; deployments that need tuned strengths build
// Lists directly.
func ListsFromConfig(broadcasters, nonBroadcasters []string, deal, genre, region map[string][]string) Lists {
	const defaultConfigStrength = 0.8

	lists := Lists{
		Broadcasters:       broadcasters,
		NonBroadcasterOrgs: nonBroadcasters,
		GenreKeywords:      genre,
		RegionKeywords:     region,
	}
	if len(deal) > 0 {
		lists.DealKeywords = make(map[domain.DealType][]DealPhrase, len(deal))
		for t, phrases := range deal {
			dt := domain.NormalizeDealType(t)
			for _, p := range phrases {
				lists.DealKeywords[dt] = append(lists.DealKeywords[dt], DealPhrase{Phrase: p, Strength: defaultConfigStrength})
			}
		}
	}
	return lists
}
