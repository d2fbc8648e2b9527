// Package nlp содержит лёгкую обработку текстов постов и комментариев:
// токенизацию для арабского и латиницы, фразы, тональность по словарю и
// облако слов.
package nlp

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	urlRe   = regexp.MustCompile(`https?://\S+|www\.\S+`)
	tokenRe = regexp.MustCompile(`[\x{0621}-\x{064A}\x{0660}-\x{0669}\p{Latin}0-9]+`)
)

// tatweel — арабский удлинитель, не несёт смысла.
const tatweel = 'ـ'

var englishStopwords = []string{
	"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by", "from", "as",
	"is", "was", "are", "were", "be", "been", "being", "have", "has", "had", "having",
	"do", "does", "did", "doing", "will", "would", "could", "should", "may", "might", "must",
	"can", "shall", "this", "that", "these", "those", "you", "she", "they", "him", "her",
	"them", "your", "his", "its", "our", "their", "mine", "yours", "hers", "ours", "theirs",
	"here", "there", "where", "when", "why", "how", "all", "any", "both", "each", "few",
	"more", "most", "other", "some", "such", "nor", "not", "only", "own", "same", "than",
	"too", "very", "just", "now", "then", "out", "off", "over", "under", "again", "further",
	"once", "twice", "thrice",
}

var arabicStopwords = []string{
	"في", "من", "إلى", "على", "هذا", "هذه", "ذلك", "تلك", "التي", "الذي", "الذين",
	"أن", "إن", "أو", "لا", "نعم", "كان", "يكون", "ما", "هل", "قد", "لقد", "عن", "مع",
	"بعد", "قبل", "عند", "كل", "بين", "حتى", "لكن", "ثم", "لم", "لن", "كما", "لماذا",
	"كيف", "أين", "متى", "أي", "أيها", "أيتها", "هؤلاء", "أولئك", "اللذان", "اللتان",
	"اللاتي", "اللائي", "اللذين", "اللتين",
}

var stopwords = func() map[string]struct{} {
	set := make(map[string]struct{}, len(englishStopwords)+len(arabicStopwords))
	for _, list := range [][]string{englishStopwords, arabicStopwords} {
		for _, w := range list {
			set[stripMarks(w)] = struct{}{}
		}
	}
	return set
}()

// stripMarks убирает диакритику (огласовки, ударения) и удлинители.
func stripMarks(s string) string {
	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.Predicate(func(r rune) bool { return unicode.Is(unicode.Mn, r) || r == tatweel })),
		norm.NFC,
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Clean приводит текст к виду для анализа: без ссылок, @ и #, диакритики
// и лишних пробелов, в нижнем регистре.
func Clean(text string) string {
	text = urlRe.ReplaceAllString(text, " ")
	text = strings.NewReplacer("@", " ", "#", " ").Replace(text)
	text = stripMarks(strings.ToLower(text))
	return strings.Join(strings.Fields(text), " ")
}

// words разбивает очищенный текст на слова без фильтрации.
func words(text string) []string {
	return tokenRe.FindAllString(Clean(text), -1)
}

// Tokenize возвращает значимые слова: без стоп-слов, чисел и слов короче трёх букв.
func Tokenize(text string) []string {
	raw := words(text)
	tokens := make([]string, 0, len(raw))
	for _, w := range raw {
		if len([]rune(w)) <= 2 || isNumber(w) {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

func isNumber(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
