package correct

import "regexp"

// defaultPositions are the honorific position words that mark a preceding
// token as a person's name in church publications.
var defaultPositions = []string{
	"담임목사", "부목사", "목사", "전도사", "교육전도사",
	"장로", "권사", "안수집사", "집사", "사모", "간사", "교역자",
}

// staticRules are recognition mistakes seen so often they are corrected
// unconditionally. Persisted dictionary rules run after these.
var staticRules = []Rule{
	{Pattern: regexp.MustCompile(`예베`), Replace: "예배", Category: "worship-term"},
	{Pattern: regexp.MustCompile(`찬앙`), Replace: "찬양", Category: "worship-term"},
	{Pattern: regexp.MustCompile(`긔도`), Replace: "기도", Category: "worship-term"},
	{Pattern: regexp.MustCompile(`헌굼`), Replace: "헌금", Category: "worship-term"},
	{Pattern: regexp.MustCompile(`셩경`), Replace: "성경", Category: "worship-term"},
	{Pattern: regexp.MustCompile(`([가-힣])ㅣ([가-힣])`), Replace: "$1이$2", Category: "glyph"},
	{Pattern: regexp.MustCompile(`(\d)O(\d)`), Replace: "${1}0${2}", Category: "digit"},
	{Pattern: regexp.MustCompile(`O(\d)`), Replace: "0${1}", Category: "digit"},
	{Pattern: regexp.MustCompile(`(\d)O`), Replace: "${1}0", Category: "digit"},
	{Pattern: regexp.MustCompile(`요한볶음`), Replace: "요한복음", Category: "scripture"},
	{Pattern: regexp.MustCompile(`시펀`), Replace: "시편", Category: "scripture"},
}

// CompileRule builds a Rule from a persisted dictionary entry. Invalid
// patterns are reported so the admin-curated table can be fixed.
func CompileRule(wrong, right, category string, conf float64) (Rule, error) {
	expr, err := regexp.Compile(wrong)
	if err != nil {
		return Rule{}, err
	}
	return Rule{Pattern: expr, Replace: right, Category: category, Confidence: conf}, nil
}
