package nlp

import (
	"math"
	"sort"
	"strings"
)

// Label — итоговая тональность текста.
type Label string

const (
	LabelPositive Label = "positive"
	LabelNegative Label = "negative"
	LabelNeutral  Label = "neutral"
)

var positiveWords = []string{
	"جيد", "ممتاز", "رائع", "حلو", "جميل", "عظيم", "مذهل", "مشكور", "شكرا",
	"good", "great", "love", "excellent", "amazing", "wonderful", "fantastic",
	"awesome", "brilliant", "perfect", "outstanding", "superb", "marvelous", "helpful",
}

var negativeWords = []string{
	"سيء", "سئ", "رديء", "مروع", "فظيع", "رهيب", "مخيب", "محبط",
	"bad", "hate", "terrible", "awful", "horrible", "disgusting", "disappointing",
	"frustrating", "annoying", "boring", "useless", "worthless", "pathetic",
}

// Фразы проверяются раньше слов: «not good» не должно засчитываться как «good».
var positivePhrases = []string{
	"thank you", "very good", "not bad", "so good", "really good", "pretty good",
	"love it", "like it", "great job", "good job", "well done", "nice work",
	"highly recommend", "worth it", "best ever", "easy to use", "high quality",
	"جيد جدا", "ممتاز جدا", "رائع جدا", "ليس سيء", "عمل رائع", "خدمة ممتازة", "جودة عالية",
}

var negativePhrases = []string{
	"very bad", "not good", "so bad", "really bad", "hate it", "not worth it",
	"worst ever", "never again", "poor quality", "low quality", "hard to use",
	"poor service", "waste of time",
	"سيء جدا", "مروع جدا", "ليس جيد", "لم يعجبني", "خدمة سيئة", "جودة سيئة", "لا يستحق",
}

var (
	positiveEmoji = []string{"❤️", "😊", "👍", "😍", "🤩", "🥰", "😘", "💕", "🌟", "✨", "🔥", "👏"}
	negativeEmoji = []string{"😢", "😡", "👎", "😠", "😤", "😞", "😔", "😭", "🤬", "💔"}
)

var (
	positiveSet = wordSet(positiveWords)
	negativeSet = wordSet(negativeWords)
	phraseTable = buildPhraseTable()
)

type lexPhrase struct {
	words    []string
	positive bool
}

func wordSet(list []string) map[string]struct{} {
	set := make(map[string]struct{}, len(list))
	for _, w := range list {
		set[stripMarks(w)] = struct{}{}
	}
	return set
}

// buildPhraseTable раскладывает фразы на слова, длинные фразы идут первыми.
func buildPhraseTable() []lexPhrase {
	table := make([]lexPhrase, 0, len(positivePhrases)+len(negativePhrases))
	for _, p := range positivePhrases {
		table = append(table, lexPhrase{words: strings.Fields(stripMarks(p)), positive: true})
	}
	for _, p := range negativePhrases {
		table = append(table, lexPhrase{words: strings.Fields(stripMarks(p))})
	}
	sort.SliceStable(table, func(i, j int) bool { return len(table[i].words) > len(table[j].words) })
	return table
}

func (p lexPhrase) matchAt(tokens []string, i int) bool {
	if i+len(p.words) > len(tokens) {
		return false
	}
	for k, w := range p.words {
		if tokens[i+k] != w {
			return false
		}
	}
	return true
}

// Sentiment — тональность одного текста.
type Sentiment struct {
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
	Positive   int     `json:"positive_hits"`
	Negative   int     `json:"negative_hits"`
}

// Analyze оценивает текст по словарю фраз, слов и эмодзи.
// score = (pos−neg)/(pos+neg), уверенность растёт с числом совпадений до 10.
func Analyze(text string) Sentiment {
	var pos, neg int
	for _, e := range positiveEmoji {
		pos += strings.Count(text, e)
	}
	for _, e := range negativeEmoji {
		neg += strings.Count(text, e)
	}

	tokens := words(text)
scan:
	for i := 0; i < len(tokens); {
		for _, p := range phraseTable {
			if !p.matchAt(tokens, i) {
				continue
			}
			if p.positive {
				pos++
			} else {
				neg++
			}
			i += len(p.words)
			continue scan
		}
		if _, ok := positiveSet[tokens[i]]; ok {
			pos++
		} else if _, ok := negativeSet[tokens[i]]; ok {
			neg++
		}
		i++
	}

	s := Sentiment{Label: LabelNeutral, Positive: pos, Negative: neg}
	hits := pos + neg
	if hits == 0 {
		return s
	}
	s.Score = float64(pos-neg) / float64(hits)
	s.Label = labelFor(s.Score)
	s.Confidence = math.Min(1, float64(hits)/10)
	return s
}

func labelFor(score float64) Label {
	switch {
	case score > 0.5:
		return LabelPositive
	case score < -0.5:
		return LabelNegative
	}
	return LabelNeutral
}

// Distribution — тональность набора текстов.
type Distribution struct {
	Texts      int     `json:"texts"`
	Positive   int     `json:"positive"`
	Negative   int     `json:"negative"`
	Neutral    int     `json:"neutral"`
	Score      float64 `json:"score"`
	Label      Label   `json:"label"`
	Confidence float64 `json:"confidence"`
}

// AnalyzeCorpus считает распределение меток и общую оценку, взвешенную по уверенности.
func AnalyzeCorpus(texts []string) Distribution {
	d := Distribution{Label: LabelNeutral}
	var weighted, confSum float64
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		d.Texts++
		s := Analyze(text)
		switch s.Label {
		case LabelPositive:
			d.Positive++
		case LabelNegative:
			d.Negative++
		default:
			d.Neutral++
		}
		weighted += s.Score * s.Confidence
		confSum += s.Confidence
	}
	if confSum > 0 {
		d.Score = math.Round(weighted/confSum*100) / 100
		d.Confidence = math.Round(confSum/float64(d.Texts)*100) / 100
		d.Label = labelFor(d.Score)
	}
	return d
}
