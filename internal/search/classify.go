package search

import (
	"net/url"
	"strings"
)

// primarySuffixes are domain suffixes of official origins.
var primarySuffixes = []string{
	".go.jp", ".lg.jp", ".ac.jp", ".gov", ".edu", ".mil",
	".gouv.fr", ".gov.uk", ".europa.eu", ".int",
}

// secondaryHosts are hosts (or host fragments) of reporting and commentary
// sites. Kept short; unknown is an acceptable answer.
var secondaryHosts = []string{
	"news.", "blog.", "medium.com", "note.com", "qiita.com", "zenn.dev",
	"wikipedia.org", "reuters.com", "bloomberg.com", "nikkei.com",
	"asahi.com", "mainichi.jp", "yomiuri.co.jp", "nhk.or.jp", "bbc.",
	"cnn.com", "theguardian.com", "yahoo.co.jp", "itmedia.co.jp",
}

// ClassifySource assigns a coarse trust classification by inspecting the
// result URL. It never fails; unparseable URLs classify as unknown.
func ClassifySource(rawURL string) SourceKind {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return SourceUnknown
	}
	host := strings.ToLower(u.Host)

	for _, suffix := range primarySuffixes {
		if strings.HasSuffix(host, suffix) {
			return SourcePrimary
		}
	}
	for _, fragment := range secondaryHosts {
		if strings.Contains(host, fragment) {
			return SourceSecondary
		}
	}
	return SourceUnknown
}
