package features

// stopWords are common words filtered out during keyword extraction
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"has": true, "its": true, "let": true, "may": true, "who": true,
	"did": true, "get": true, "got": true, "him": true, "his": true,
	"how": true, "new": true, "now": true, "old": true, "any": true,
	"see": true, "way": true, "too": true, "use": true, "why": true,
	"that": true, "with": true, "have": true, "this": true, "will": true,
	"your": true, "from": true, "they": true, "been": true, "said": true,
	"each": true, "which": true, "their": true, "what": true, "about": true,
	"would": true, "there": true, "when": true, "make": true, "like": true,
	"just": true, "know": true, "take": true, "come": true, "does": true,
	"could": true, "than": true, "look": true, "only": true, "into": true,
	"over": true, "such": true, "also": true, "back": true, "some": true,
	"them": true, "then": true, "these": true, "thing": true, "where": true,
	"much": true, "should": true, "well": true, "after": true, "were": true,
	"being": true, "because": true, "while": true, "those": true, "here": true,
	"very": true, "more": true, "most": true, "other": true, "again": true,
}

// positiveWords is the positive half of the sentiment lexicon
var positiveWords = map[string]bool{
	"good": true, "great": true, "works": true, "working": true, "fixed": true,
	"success": true, "successful": true, "succeeded": true, "pass": true, "passes": true,
	"passed": true, "resolved": true, "improved": true, "improvement": true, "fast": true,
	"faster": true, "clean": true, "stable": true, "correct": true, "solved": true,
	"excellent": true, "better": true, "best": true, "simple": true, "reliable": true,
	"done": true, "complete": true, "completed": true, "ok": true, "helpful": true,
}

// negativeWords is the negative half of the sentiment lexicon
var negativeWords = map[string]bool{
	"bad": true, "error": true, "errors": true, "fail": true, "fails": true,
	"failed": true, "failure": true, "broken": true, "bug": true, "bugs": true,
	"crash": true, "crashed": true, "panic": true, "slow": true, "slower": true,
	"wrong": true, "issue": true, "issues": true, "problem": true, "problems": true,
	"regression": true, "flaky": true, "timeout": true, "leak": true, "deadlock": true,
	"worse": true, "worst": true, "blocked": true, "unstable": true, "incorrect": true,
}

// negators flip the polarity of the next lexicon word
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "without": true,
	"isn": true, "doesn": true, "didn": true, "don": true, "wasn": true, "cannot": true,
}
