package conversation

import (
	"sort"
	"strings"

	"github.com/edgareichner01-sys/bot-rdv/internal/tenant"
)

type faqTopic struct {
	// words that raise the topic in a customer message
	triggers phraseSet
	// FAQ keys that answer it
	keys phraseSet
}

var faqTopics = []faqTopic{
	{
		triggers: phraseSet{"hours", "opening", "open", "closing", "closed", "horaire", "horaires", "ouvert", "ouverte", "ouverture", "fermé", "ferme"},
		keys:     phraseSet{"hours", "opening hours", "horaire", "horaires"},
	},
	{
		triggers: phraseSet{"address", "where", "located", "location", "adresse", "où", "situé", "situe"},
		keys:     phraseSet{"address", "location", "adresse"},
	},
	{
		triggers: phraseSet{"price", "prices", "pricing", "cost", "how much", "tarif", "tarifs", "prix", "combien"},
		keys:     phraseSet{"price", "prices", "pricing", "tarif", "tarifs", "prix"},
	},
}

// matchFAQ answers from the tenant FAQ by keyword. A key quoted in the
// message wins; otherwise topic synonyms route to the matching key. Opening
// hours fall back to the configured schedule when the FAQ has no entry.
func matchFAQ(cfg *tenant.Config, message string) (string, bool) {
	n := normalizeWords(message)

	keys := make([]string, 0, len(cfg.FAQ))
	for k := range cfg.FAQ {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if (phraseSet{strings.TrimSpace(normalizeWords(k))}).in(n) {
			return cfg.FAQ[k], true
		}
	}

	for i, topic := range faqTopics {
		if !topic.triggers.in(n) {
			continue
		}
		for _, k := range keys {
			if topic.keys.is(normalizeWords(k)) {
				return cfg.FAQ[k], true
			}
		}
		if i == 0 {
			return "Our opening hours: " + cfg.BusinessHours.Summary() + ".", true
		}
	}
	return "", false
}
