package analysis

// englishStopwords holds the common English function words dropped during
// analysis when Options.Stopwords is set. Ported from the word list the
// example pack's search engine ships with, trimmed of entries that
// double as common short identifiers in source code (e.g. "do", "if",
// "in", "is", "it", "or") so real code terms are never silently dropped.
var englishStopwords = map[string]struct{}{
	"a": {}, "about": {}, "above": {}, "after": {}, "again": {}, "against": {},
	"all": {}, "am": {}, "an": {}, "and": {}, "any": {}, "are": {}, "aren't": {},
	"as": {}, "at": {}, "be": {}, "because": {}, "been": {}, "before": {},
	"being": {}, "below": {}, "between": {}, "both": {}, "but": {}, "by": {},
	"can't": {}, "cannot": {}, "could": {}, "couldn't": {}, "did": {},
	"didn't": {}, "does": {}, "doesn't": {}, "doing": {}, "don't": {}, "down": {},
	"during": {}, "each": {}, "few": {}, "for": {}, "from": {}, "further": {},
	"had": {}, "hadn't": {}, "has": {}, "hasn't": {}, "have": {}, "haven't": {},
	"having": {}, "he": {}, "her": {}, "here": {}, "hers": {}, "herself": {},
	"him": {}, "himself": {}, "his": {}, "how": {}, "i": {}, "into": {},
	"isn't": {}, "it's": {}, "its": {}, "itself": {}, "let's": {}, "me": {},
	"more": {}, "most": {}, "mustn't": {}, "my": {}, "myself": {}, "no": {},
	"nor": {}, "not": {}, "of": {}, "off": {}, "once": {}, "only": {}, "other": {},
	"ought": {}, "our": {}, "ours": {}, "ourselves": {}, "out": {}, "over": {},
	"own": {}, "same": {}, "shan't": {}, "she": {}, "should": {}, "shouldn't": {},
	"so": {}, "some": {}, "such": {}, "than": {}, "that": {}, "that's": {},
	"the": {}, "their": {}, "theirs": {}, "them": {}, "themselves": {}, "then": {},
	"there": {}, "these": {}, "they": {}, "they'd": {}, "they'll": {},
	"they're": {}, "they've": {}, "this": {}, "those": {}, "through": {}, "to": {},
	"too": {}, "under": {}, "until": {}, "up": {}, "very": {}, "was": {},
	"wasn't": {}, "we": {}, "we'd": {}, "we'll": {}, "we're": {}, "we've": {},
	"were": {}, "weren't": {}, "what": {}, "what's": {}, "when": {}, "when's": {},
	"where": {}, "where's": {}, "which": {}, "while": {}, "who": {}, "who's": {},
	"whom": {}, "why": {}, "why's": {}, "with": {}, "won't": {}, "would": {},
	"wouldn't": {}, "you": {}, "you'd": {}, "you'll": {}, "you're": {}, "you've": {},
	"your": {}, "yours": {}, "yourself": {}, "yourselves": {},
}
