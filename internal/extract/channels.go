package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/ashureev/campaign-consult/internal/domain"
)

type channelAlias struct {
	name    string
	pattern *regexp.Regexp
}

// channelAliases maps each canonical channel to the phrases users write for it.
var channelAliases = []channelAlias{
	{"Instagram", wordsRegexp([]string{"instagram", "insta", "ig", "reels"})},
	{"Facebook", wordsRegexp([]string{"facebook", "fb", "meta ads"})},
	{"Twitter", wordsRegexp([]string{"twitter", "tweets", "tweet", "x.com"})},
	{"LinkedIn", wordsRegexp([]string{"linkedin", "linked in"})},
	{"TikTok", wordsRegexp([]string{"tiktok", "tik tok"})},
	{"YouTube", wordsRegexp([]string{"youtube", "yt shorts"})},
	{"Pinterest", wordsRegexp([]string{"pinterest"})},
	{"Snapchat", wordsRegexp([]string{"snapchat", "snap"})},
	{"Reddit", wordsRegexp([]string{"reddit"})},
	{"Email", wordsRegexp([]string{"email", "e-mail", "emails", "newsletter", "newsletters", "mailing list"})},
	{"Google Ads", wordsRegexp([]string{"google ads", "adwords", "search ads", "ppc", "sem"})},
	{"SEO", wordsRegexp([]string{"seo", "search engine optimization"})},
	{"Blog", wordsRegexp([]string{"blog", "blogging", "content marketing"})},
	{"SMS", wordsRegexp([]string{"sms", "text messages", "texting"})},
	{"Podcasts", wordsRegexp([]string{"podcast", "podcasts"})},
	{"Print", wordsRegexp([]string{"print", "flyers", "flyer", "newspaper", "magazine", "posters", "brochures", "direct mail"})},
	{"Radio", wordsRegexp([]string{"radio"})},
	{"TV", wordsRegexp([]string{"tv", "television"})},
	{"Local events", wordsRegexp([]string{"local events", "community events", "farmers market", "pop-ups", "pop-up"})},
	{"Word of mouth", wordsRegexp([]string{"word of mouth", "referrals", "referral program"})},
	{"Influencers", wordsRegexp([]string{"influencer", "influencers"})},
	{"Digital", wordsRegexp([]string{"online marketing", "digital marketing", "digital ads", "online ads"})},
	{"Social media", wordsRegexp([]string{"social media", "social"})},
}

var socialNetworks = map[string]bool{
	"Instagram": true, "Facebook": true, "Twitter": true, "LinkedIn": true,
	"TikTok": true, "YouTube": true, "Pinterest": true, "Snapchat": true, "Reddit": true,
}

type channelsExtractor struct{}

// Channels extracts known marketing channels, in the order they are mentioned.
func Channels() Extractor {
	return channelsExtractor{}
}

func (channelsExtractor) Field() domain.Field { return domain.FieldChannels }

func (channelsExtractor) Extract(text string) (Candidate, bool) {
	names := FindChannels(text)
	if len(names) == 0 {
		return Candidate{}, false
	}
	return Candidate{
		Field:      domain.FieldChannels,
		Value:      strings.Join(names, ", "),
		Confidence: domain.ConfidenceExtracted,
	}, true
}

// FindChannels returns the canonical channel names mentioned in text. The
// generic "Social media" is dropped when a specific network is named.
func FindChannels(text string) []string {
	type hit struct {
		name string
		at   int
	}
	var hits []hit
	specific := false
	for _, a := range channelAliases {
		loc := a.pattern.FindStringIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{a.name, loc[0]})
		if socialNetworks[a.name] {
			specific = true
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].at < hits[j].at })

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		if h.name == "Social media" && specific {
			continue
		}
		out = append(out, h.name)
	}
	return out
}
