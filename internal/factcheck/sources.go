package factcheck

import (
	"net/url"
	"strings"
)

// AuthorityTier ranks how authoritative a cited source is
type AuthorityTier int

const (
	TierUnknown   AuthorityTier = 0 // free text, no recognizable domain
	TierPrimary   AuthorityTier = 1 // government, academic, official records
	TierSecondary AuthorityTier = 2 // encyclopedias, major publishers and media
	TierTertiary  AuthorityTier = 3 // everything else with a domain
)

func (t AuthorityTier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	case TierTertiary:
		return "tertiary"
	default:
		return "unknown"
	}
}

// Default domain lists. Subdomains match their parent.
var (
	DefaultPrimaryDomains = []string{
		"doi.org", "who.int", "un.org", "europa.eu", "arxiv.org",
		"pubmed.ncbi.nlm.nih.gov", "legislation.gov.uk", "scholar.google.com",
	}
	DefaultSecondaryDomains = []string{
		"wikipedia.org", "britannica.com", "reuters.com", "apnews.com",
		"bbc.co.uk", "bbc.com", "nature.com", "sciencedirect.com", "nytimes.com",
	}
)

// RankedSource is a verdict source with its authority tier
type RankedSource struct {
	Source string        `json:"source"`
	Host   string        `json:"host,omitempty"`
	Tier   AuthorityTier `json:"tier"`
}

// AuthorityClassifier assigns authority tiers to cited sources
type AuthorityClassifier struct {
	primary   map[string]bool
	secondary map[string]bool
}

// NewAuthorityClassifier creates a classifier; nil lists use the defaults
func NewAuthorityClassifier(primary, secondary []string) *AuthorityClassifier {
	if primary == nil {
		primary = DefaultPrimaryDomains
	}
	if secondary == nil {
		secondary = DefaultSecondaryDomains
	}

	a := &AuthorityClassifier{
		primary:   make(map[string]bool, len(primary)),
		secondary: make(map[string]bool, len(secondary)),
	}
	for _, d := range primary {
		a.primary[strings.ToLower(d)] = true
	}
	for _, d := range secondary {
		a.secondary[strings.ToLower(d)] = true
	}
	return a
}

// Classify tiers one source. Sources are URLs, bare domains, or free text
// such as "NASA"; free text is TierUnknown.
func (a *AuthorityClassifier) Classify(source string) AuthorityTier {
	return a.classifyHost(sourceHost(source))
}

// Rank classifies every source, keeping order
func (a *AuthorityClassifier) Rank(sources []string) []RankedSource {
	ranked := make([]RankedSource, len(sources))
	for i, s := range sources {
		host := sourceHost(s)
		ranked[i] = RankedSource{Source: s, Host: host, Tier: a.classifyHost(host)}
	}
	return ranked
}

func (a *AuthorityClassifier) classifyHost(host string) AuthorityTier {
	if host == "" {
		return TierUnknown
	}
	if matchDomain(host, a.primary) {
		return TierPrimary
	}
	if matchDomain(host, a.secondary) {
		return TierSecondary
	}

	// TLDs that indicate authority
	if strings.HasSuffix(host, ".gov") || strings.HasSuffix(host, ".edu") || strings.HasSuffix(host, ".ac.uk") ||
		strings.HasSuffix(host, ".mil") {
		return TierPrimary
	}
	return TierTertiary
}

// matchDomain reports whether host is, or is a subdomain of, one of domains
func matchDomain(host string, domains map[string]bool) bool {
	for h := host; h != ""; {
		if domains[h] {
			return true
		}
		idx := strings.Index(h, ".")
		if idx < 0 {
			break
		}
		h = h[idx+1:]
	}
	return false
}

// sourceHost extracts a lower-case host from a URL or bare domain
// ("nasa.gov/missions"), or "" for free text
func sourceHost(source string) string {
	s := strings.TrimSpace(source)
	if s == "" || strings.ContainsAny(s, " \t") {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())

	// a domain needs a dot and an alphabetic last label
	idx := strings.LastIndex(host, ".")
	if idx <= 0 || idx == len(host)-1 {
		return ""
	}
	for _, r := range host[idx+1:] {
		if r < 'a' || r > 'z' {
			return ""
		}
	}
	return strings.TrimPrefix(host, "www.")
}
