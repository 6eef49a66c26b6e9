package conversation

import (
	"strings"
	"unicode"
)

// normalizeWords lowercases text and reduces it to single-space separated
// words, padded with a space on each side so phrases can be matched on word
// boundaries: " rendez vous ", " d accord ".
func normalizeWords(text string) string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return " "
	}
	return " " + strings.Join(words, " ") + " "
}

type phraseSet []string

// in reports whether any phrase occurs in normalized text.
func (p phraseSet) in(normalized string) bool {
	for _, phrase := range p {
		if strings.Contains(normalized, " "+phrase+" ") {
			return true
		}
	}
	return false
}

// is reports whether the whole normalized text equals one of the phrases.
func (p phraseSet) is(normalized string) bool {
	trimmed := strings.TrimSpace(normalized)
	for _, phrase := range p {
		if trimmed == phrase {
			return true
		}
	}
	return false
}

var (
	cancelPhrases = phraseSet{
		"cancel", "cancel it", "cancelled", "canceled", "abort", "stop",
		"never mind", "nevermind", "forget it",
		"annuler", "annule", "annulez", "annulation", "laisse tomber", "oublie",
	}
	// A bare "no" cancels only when it is the whole message.
	negativeReplies = phraseSet{
		"no", "nope", "no thanks", "no thank you", "non", "non merci",
	}
	bookPhrases = phraseSet{
		"appointment", "appointments", "book", "booking", "reserve", "reservation",
		"schedule", "slot",
		"rdv", "rendez vous", "rendezvous", "réserver", "reserver", "réservation",
		"créneau", "creneau",
	}
	faqPhrases = phraseSet{
		"hours", "opening", "open", "closing", "closed",
		"address", "where", "located", "location",
		"price", "prices", "pricing", "cost", "how much",
		"horaire", "horaires", "ouvert", "ouverte", "ouverture", "fermé", "ferme",
		"adresse", "où", "situé", "situe",
		"tarif", "tarifs", "prix", "combien",
	}
	affirmativeReplies = phraseSet{
		"yes", "y", "yeah", "yep", "yup", "ok", "okay", "ok thanks", "sure",
		"confirm", "confirmed", "i confirm", "yes please", "yes i confirm",
		"sounds good", "perfect", "great", "fine", "that works", "go ahead",
		"oui", "ouais", "d accord", "daccord", "je confirme", "oui je confirme",
		"c est bon", "parfait", "ok merci", "oui merci", "oui s il vous plait", "vas y",
	}
)

// hasCancelKeyword reports an explicit request to drop the current booking.
func hasCancelKeyword(message string) bool {
	n := normalizeWords(message)
	return cancelPhrases.in(n) || negativeReplies.is(n)
}

func hasBookKeyword(message string) bool {
	return bookPhrases.in(normalizeWords(message))
}

func hasFAQKeyword(message string) bool {
	return faqPhrases.in(normalizeWords(message))
}

// isAffirmative reports whether the whole message is a confirmation token.
func isAffirmative(message string) bool {
	return affirmativeReplies.is(normalizeWords(message))
}
