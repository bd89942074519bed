package mood

import "strings"

// Mood 表示从用户原始输入中识别出的情绪标签。
type Mood string

const (
	Loneliness Mood = "loneliness"
	Breakup    Mood = "breakup"
	Anxiety    Mood = "anxiety"
	Sadness    Mood = "sadness"
	Anger      Mood = "anger"
	Neutral    Mood = "neutral"
)

type bucket struct {
	mood     Mood
	triggers []string
}

// keywordTable 的顺序即匹配优先级，第一个命中的情绪胜出。
var keywordTable = []bucket{
	{mood: Loneliness, triggers: []string{"alone", "lonely", "isolated"}},
	{mood: Breakup, triggers: []string{"breakup", "heartbroken", "relationship"}},
	{mood: Anxiety, triggers: []string{"anxious", "nervous", "worried"}},
	{mood: Sadness, triggers: []string{"sad", "depressed", "cry"}},
	{mood: Anger, triggers: []string{"angry", "frustrated"}},
}

// Classify 按子串匹配识别情绪，不区分大小写，未命中时返回 Neutral。
//
// 匹配是朴素的子串包含而非整词匹配，因此 "crystal" 会命中 sadness。
func Classify(text string) Mood {
	normalized := strings.ToLower(text)
	for _, b := range keywordTable {
		for _, trigger := range b.triggers {
			if strings.Contains(normalized, trigger) {
				return b.mood
			}
		}
	}
	return Neutral
}

// Moods 按匹配顺序列出全部情绪，Neutral 位于末尾。
func Moods() []Mood {
	out := make([]Mood, 0, len(keywordTable)+1)
	for _, b := range keywordTable {
		out = append(out, b.mood)
	}
	return append(out, Neutral)
}

// Parse 将字符串还原为已知情绪。
func Parse(raw string) (Mood, bool) {
	candidate := Mood(strings.ToLower(strings.TrimSpace(raw)))
	for _, m := range Moods() {
		if m == candidate {
			return m, true
		}
	}
	return "", false
}

// Annotation 返回附加在助手回复末尾的情绪标注。
func Annotation(m Mood) string {
	return "💬 *Mood: " + string(m) + "*"
}
