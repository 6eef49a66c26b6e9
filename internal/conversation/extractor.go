package conversation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"
)

// Fields is a best-effort reading of name, date and time from one message.
// Empty strings mean absent. Date is YYYY-MM-DD and Time is HH:MM.
type Fields struct {
	Name string
	Date string
	Time string
	// nameGuessed is set when Name came from the short-message heuristic
	// rather than a self-introduction.
	nameGuessed bool
}

var (
	introRe    = regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:my name is|my name's|call me|je m['’]appelle|moi c['’]est|mon nom est|mon nom c['’]est)\s+([\p{L}][\p{L}'’-]*(?:\s+[\p{L}][\p{L}'’-]*){0,2})`)
	nameWordRe = regexp.MustCompile(`^[\p{L}][\p{L}'’.-]*$`)

	isoInTextRe = regexp.MustCompile(`(?:^|\D)(\d{4})-(\d{2})-(\d{2})(?:\D|$)`)
	dmyRe       = regexp.MustCompile(`(?:^|[^\d/])(\d{1,2})/(\d{1,2})/(\d{4})(?:[^\d/]|$)`)
	dmRe        = regexp.MustCompile(`(?:^|[^\d/])(\d{1,2})/(\d{1,2})(?:[^\d/]|$)`)

	ampmRe   = regexp.MustCompile(`(?i)(?:^|[^\d:])(\d{1,2})(?::(\d{2}))?\s*([ap])\.?m\b\.?`)
	colonRe  = regexp.MustCompile(`(?:^|[^\d:])(\d{1,2}):(\d{2})(?:[^\d:]|$)`)
	hRe      = regexp.MustCompile(`(?i)(?:^|[^\d])(\d{1,2})\s?h(\d{2})?(?:[^\p{L}\d]|$)`)
	heuresRe = regexp.MustCompile(`(?i)(?:^|[^\d])(\d{1,2})\s*heures?(?:\s*(\d{2}))?(?:[^\p{L}\d]|$)`)
)

var (
	weekdayWords = phraseSet{
		"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
		"lundi", "mardi", "mercredi", "jeudi", "vendredi", "samedi", "dimanche",
	}
	relativeDayWords = phraseSet{
		"today", "tomorrow", "tonight", "morning", "afternoon", "evening", "day", "after", "next", "week",
		"aujourd", "hui", "demain", "après", "apres", "matin", "soir", "semaine", "prochain", "prochaine",
	}
	fillerWords = phraseSet{
		"hi", "hello", "hey", "good", "bye", "thanks", "thank", "you", "please", "help", "bonjour",
		"bonsoir", "salut", "coucou", "merci", "svp", "stp", "aide",
		"i", "me", "my", "we", "a", "an", "the", "and", "or", "for", "at", "on", "in", "to", "is", "it",
		"je", "moi", "un", "une", "le", "la", "les", "et", "ou", "pour", "à", "a", "de", "du", "en",
		"what", "when", "how", "why", "who", "which", "want", "need", "can", "could", "would", "like",
		"quoi", "quand", "comment", "pourquoi", "qui", "veux", "voudrais", "besoin", "peux",
		"maybe", "later", "peut", "être", "etre", "plus", "tard", "not", "pas", "test",
	}
)

// isFillerWord reports whether a single normalized word can never be part of a name.
func isFillerWord(w string) bool {
	n := " " + w + " "
	return fillerWords.in(n) || weekdayWords.in(n) || relativeDayWords.in(n) ||
		cancelPhrases.in(n) || negativeReplies.is(n) || bookPhrases.in(n) ||
		faqPhrases.in(n) || affirmativeReplies.is(n)
}

// ExtractFields reads name, date and time from text. Relative dates resolve
// against now, in now's location.
func ExtractFields(text string, now time.Time) Fields {
	name, guessed := extractName(text)
	return Fields{
		Name:        name,
		Date:        extractDate(text, now),
		Time:        extractTime(text),
		nameGuessed: guessed,
	}
}

func extractName(text string) (string, bool) {
	if m := introRe.FindStringSubmatch(text); m != nil {
		var kept []string
		for _, w := range strings.Fields(m[1]) {
			if isFillerWord(strings.Trim(normalizeWords(w), " ")) {
				break
			}
			kept = append(kept, w)
		}
		if len(kept) > 0 {
			return titleCase(strings.Join(kept, " ")), false
		}
	}

	segment := text
	if i := strings.Index(segment, ","); i >= 0 {
		segment = segment[:i]
	}
	segment = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(segment), ".!?"))
	words := strings.Fields(segment)
	if len(words) == 0 || len(words) > 3 {
		return "", false
	}
	for _, w := range words {
		if !nameWordRe.MatchString(w) {
			return "", false
		}
		for _, part := range strings.Fields(normalizeWords(w)) {
			if isFillerWord(part) {
				return "", false
			}
		}
	}
	return titleCase(strings.Join(words, " ")), true
}

// titleCase capitalizes each word and each hyphenated part: "jean-pierre" -> "Jean-Pierre".
func titleCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range strings.ToLower(s) {
		if upper && unicode.IsLetter(r) {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
			continue
		}
		b.WriteRune(r)
		if r == ' ' || r == '-' {
			upper = true
		}
	}
	return b.String()
}

func extractDate(text string, now time.Time) string {
	date := numericDate(text, now)

	n := normalizeWords(text)
	switch {
	case phraseSet{"day after tomorrow", "après demain", "apres demain"}.in(n):
		date = now.AddDate(0, 0, 2).Format(dateLayout)
	case phraseSet{"tomorrow", "demain"}.in(n):
		date = now.AddDate(0, 0, 1).Format(dateLayout)
	case phraseSet{"today", "aujourd hui", "tonight", "ce soir"}.in(n):
		date = now.Format(dateLayout)
	}
	return date
}

func numericDate(text string, now time.Time) string {
	if m := isoInTextRe.FindStringSubmatch(text); m != nil {
		d := m[1] + "-" + m[2] + "-" + m[3]
		if IsValidDate(d) {
			return d
		}
	}
	if m := dmyRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year, _ := strconv.Atoi(m[3])
		if d, ok := realDate(year, month, day, now.Location()); ok {
			return d.Format(dateLayout)
		}
	}
	if m := dmRe.FindStringSubmatch(text); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if d, ok := realDate(now.Year(), month, day, now.Location()); ok {
			today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
			if d.Before(today) {
				if next, ok := realDate(now.Year()+1, month, day, now.Location()); ok {
					d = next
				}
			}
			return d.Format(dateLayout)
		}
	}
	return ""
}

// realDate rejects dates time.Date would silently normalize, such as 31/02.
func realDate(year, month, day int, loc *time.Location) (time.Time, bool) {
	if month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
	if d.Day() != day || int(d.Month()) != month {
		return time.Time{}, false
	}
	return d, true
}

func extractTime(text string) string {
	if m := ampmRe.FindStringSubmatch(text); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour >= 1 && hour <= 12 && minute <= 59 {
			hour %= 12
			if strings.EqualFold(m[3], "p") {
				hour += 12
			}
			return fmt.Sprintf("%02d:%02d", hour, minute)
		}
	}
	for _, re := range []*regexp.Regexp{colonRe, hRe, heuresRe} {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if len(m) > 2 && m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if hour <= 23 && minute <= 59 {
			return fmt.Sprintf("%02d:%02d", hour, minute)
		}
	}
	return ""
}
