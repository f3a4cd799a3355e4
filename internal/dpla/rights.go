package dpla

import "strings"

// RightsCategory groups rights URIs by what re-use they permit. Only
// CategoryUnlimited records are eligible for publication.
type RightsCategory string

const (
	CategoryUnlimited RightsCategory = "Unlimited Re-Use"
	CategoryLimited   RightsCategory = "Limited Re-Use"
	CategoryUnknown   RightsCategory = "Unknown"
)

// unlimitedRightsPrefixes are the rights-statement and license URI prefixes
// whose terms permit unrestricted re-use on the target repository.
var unlimitedRightsPrefixes = []string{
	"rightsstatements.org/vocab/NoC-US/",
	"creativecommons.org/publicdomain/mark/",
	"creativecommons.org/publicdomain/zero/",
	"creativecommons.org/licenses/by/",
	"creativecommons.org/licenses/by-sa/",
}

// limitedRightsPrefixes are recognized but insufficient for publication.
var limitedRightsPrefixes = []string{
	"rightsstatements.org/vocab/",
	"creativecommons.org/licenses/",
}

// RightsCategoryFor classifies a rights URI. Scheme and a leading "www." are
// ignored so that http/https and host variants of the same statement land in
// the same category.
func RightsCategoryFor(uri string) RightsCategory {
	normalized := normalizeRightsURI(uri)
	if normalized == "" {
		return CategoryUnknown
	}
	for _, prefix := range unlimitedRightsPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return CategoryUnlimited
		}
	}
	for _, prefix := range limitedRightsPrefixes {
		if strings.HasPrefix(normalized, prefix) {
			return CategoryLimited
		}
	}
	return CategoryUnknown
}

func normalizeRightsURI(uri string) string {
	s := strings.TrimSpace(strings.ToLower(uri))
	s = strings.TrimPrefix(s, "https://")
	s = strings.TrimPrefix(s, "http://")
	s = strings.TrimPrefix(s, "www.")
	if s != "" && !strings.HasSuffix(s, "/") {
		s += "/"
	}
	return s
}
