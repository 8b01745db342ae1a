package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// AnalyzedURL is the hint-relevant decomposition of a challenge destination.
type AnalyzedURL struct {
	URL      string
	Domain   string
	Path     string
	Keywords []string
	Category string
}

// AnalyzeURL breaks a destination URL into the pieces hints are built from.
// Unparseable input yields a best-effort result rather than an error.
func AnalyzeURL(raw string) AnalyzedURL {
	a := AnalyzedURL{URL: raw, Category: "unknown"}
	parsed, err := url.Parse(raw)
	if err != nil {
		return a
	}
	a.Domain = parsed.Host
	a.Path = parsed.Path
	for _, part := range strings.Split(raw, "/") {
		if part != "" {
			a.Keywords = append(a.Keywords, part)
		}
	}
	return a
}

// HintFor produces a tier-appropriate hint for the given level. Simple gives
// the answer away quickly, medium gives partial information, hard stays
// vague, expert is cryptic until the last levels.
func HintFor(tier DifficultyTier, analyzed AnalyzedURL, level int) string {
	domain := analyzed.Domain

	switch tier.ID {
	case "simple":
		switch level {
		case 1:
			return fmt.Sprintf("The website you're looking for is %s", domain)
		case 2:
			return fmt.Sprintf("Try searching for: %q", strings.Join(analyzed.Keywords, " "))
		default:
			return fmt.Sprintf("The exact URL is: %s", analyzed.URL)
		}

	case "medium":
		switch level {
		case 1:
			return fmt.Sprintf("The domain contains: %s...", prefix(domainLabel(domain), 3))
		case 2:
			return fmt.Sprintf("Keywords to search: %s", strings.Join(firstN(analyzed.Keywords, 2), ", "))
		case 3:
			return fmt.Sprintf("The top-level domain is: .%s", tld(domain, ""))
		default:
			return fmt.Sprintf("Full domain: %s", domain)
		}

	case "hard":
		switch level {
		case 1:
			return "Think about what type of website this could be..."
		case 2:
			return fmt.Sprintf("The website category might be: %s", analyzed.Category)
		case 3:
			return fmt.Sprintf("The domain has %d characters", len(domain))
		case 4:
			if domain == "" {
				return "No domain info"
			}
			return fmt.Sprintf("First letter of domain: %s", strings.ToUpper(domain[:1]))
		case 5:
			return fmt.Sprintf("The domain is: %s", domain)
		default:
			return fmt.Sprintf("Path: %s", analyzed.Path)
		}

	case "expert":
		cryptic := expertHints(analyzed)
		if level >= 1 && level <= len(cryptic) {
			return cryptic[level-1]
		}
		return fmt.Sprintf("The full URL is: %s", analyzed.URL)
	}

	return "No hint available"
}

func expertHints(analyzed AnalyzedURL) []string {
	domain := analyzed.Domain
	first := "?"
	if domain != "" {
		first = domain[:1]
	}
	hasDigit := strings.ContainsAny(domain, "0123456789")
	digitAnswer := "No"
	if hasDigit {
		digitAnswer = "Yes"
	}
	return []string{
		fmt.Sprintf("The answer lies within %d parts...", len(strings.Split(domain, "."))),
		"It rhymes with... nothing. Search harder.",
		fmt.Sprintf("The domain starts with: %s", first),
		fmt.Sprintf("TLD: .%s", tld(domain, "???")),
		fmt.Sprintf("Vowels in domain: %d", countVowels(domain)),
		fmt.Sprintf("Domain length: %d characters", len(domain)),
		fmt.Sprintf("Contains numbers: %s", digitAnswer),
		fmt.Sprintf("First 3 letters: %s", prefix(domain, 3)),
		fmt.Sprintf("Last 3 letters: %s", suffix(domain, 3)),
		fmt.Sprintf("The domain is: %s", domain),
	}
}

func countVowels(s string) int {
	n := 0
	for _, r := range s {
		if strings.ContainsRune("aeiou", r) {
			n++
		}
	}
	return n
}

func domainLabel(domain string) string {
	if i := strings.Index(domain, "."); i >= 0 {
		return domain[:i]
	}
	return domain
}

func tld(domain, fallback string) string {
	if i := strings.LastIndex(domain, "."); i >= 0 {
		return domain[i+1:]
	}
	return fallback
}

func prefix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[:n]
}

func suffix(s string, n int) string {
	if len(s) < n {
		return s
	}
	return s[len(s)-n:]
}

func firstN(parts []string, n int) []string {
	if len(parts) < n {
		return parts
	}
	return parts[:n]
}
