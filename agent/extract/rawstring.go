package extract

import (
	"fmt"
	"regexp"
	"strings"
)

// Section patterns tried in order against non-JSON payloads; the first one
// that matches supplies the text the name patterns then mine.
var guestSectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)guests?[:\s]*([\s\S]*?)(?:\n\n|\n[A-Z]|\z)`),
	regexp.MustCompile(`(?i)passengers?[:\s]*([\s\S]*?)(?:\n\n|\n[A-Z]|\z)`),
	regexp.MustCompile(`(?i)travellers?[:\s]*([\s\S]*?)(?:\n\n|\n[A-Z]|\z)`),
	regexp.MustCompile(`(?i)client[:\s]*([^\n]+)`),
}

var guestNamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)name[:\s]*([^\n,]+)`),
	regexp.MustCompile(`[A-Z][a-z]+\s+[A-Z][a-z]+`), // full names like "John Doe"
	regexp.MustCompile(`"([^"]+)"`),
	regexp.MustCompile(`:\s*([A-Z][a-z\s]+)(?:,|\n|\z)`),
}

var clientLinePattern = regexp.MustCompile(`(?i)client[:\s]*([^\n]+)`)

var namePrefixPattern = regexp.MustCompile(`(?i)name[:\s]*`)

func fromRawString(payload, lowerQuery string) string {
	if isGuestQuery(lowerQuery) {
		return guestNamesFromRaw(payload)
	}
	if isClientQuery(lowerQuery) {
		if m := clientLinePattern.FindStringSubmatch(payload); m != nil {
			return "Client Name: " + strings.TrimSpace(m[1])
		}
		return "I couldn't find the client name in the tour details."
	}
	return payload
}

func guestNamesFromRaw(payload string) string {
	for _, sectionPattern := range guestSectionPatterns {
		m := sectionPattern.FindStringSubmatch(payload)
		if m == nil {
			continue
		}
		section := m[1]

		var names []string
		seen := make(map[string]struct{})
		for _, namePattern := range guestNamePatterns {
			for _, match := range namePattern.FindAllString(section, -1) {
				clean := cleanName(match)
				if len(clean) <= 2 || strings.Contains(strings.ToLower(clean), "guest") {
					continue
				}
				if _, dup := seen[clean]; dup {
					continue
				}
				seen[clean] = struct{}{}
				names = append(names, clean)
			}
		}

		if len(names) > 0 {
			lines := make([]string, len(names))
			for i, name := range names {
				lines[i] = fmt.Sprintf("%d. %s", i+1, name)
			}
			return "Guests:\n" + strings.Join(lines, "\n")
		}
	}
	return "Guest information format not recognized. Please check the raw tour data."
}

func cleanName(match string) string {
	clean := namePrefixPattern.ReplaceAllString(match, "")
	clean = strings.NewReplacer(`"`, "", ":", "", ",", "").Replace(clean)
	return strings.TrimSpace(clean)
}
