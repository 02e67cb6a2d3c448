package intervention

import "strings"

// SiteKind classifies the page a user is on
type SiteKind string

const (
	SiteShopping SiteKind = "shopping"
	SiteGigWork  SiteKind = "gig_work"
	SiteNeutral  SiteKind = "neutral"
)

var (
	shoppingSites = []string{"amazon", "myntra", "flipkart", "swiggy", "zomato"}
	gigSites      = []string{"upwork", "fiverr", "freelancer"}

	// display names used on the dashboard, checked in order
	siteNames = []struct{ key, name string }{
		{"amazon", "Amazon"},
		{"myntra", "Myntra"},
		{"flipkart", "Flipkart"},
		{"upwork", "Upwork"},
	}
)

// Classify matches the lowercased URL against the known site lists.
// Shopping wins when both match.
func Classify(contextURL string) SiteKind {
	u := strings.ToLower(contextURL)
	if containsAny(u, shoppingSites) {
		return SiteShopping
	}
	if containsAny(u, gigSites) {
		return SiteGigWork
	}
	return SiteNeutral
}

// SiteName returns a readable label for a context URL
func SiteName(contextURL string) string {
	u := strings.ToLower(contextURL)
	for _, s := range siteNames {
		if strings.Contains(u, s.key) {
			return s.name
		}
	}
	return "Shopping Site"
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
