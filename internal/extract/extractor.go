package extract

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/mnemolabs/mnemo/internal/domain"
	"go.uber.org/zap"
)

// ErrSlotNormalizationFailure means a raw value could not be reduced to a
// comparable form. Callers retry with a safe empty value and continue the
// turn rather than blocking on it.
var ErrSlotNormalizationFailure = errors.New("slot value normalization failed")

// Match is the tagged result of one matcher. OldHint is only set by
// correction matchers and must carry the value being corrected; a matcher
// that cannot recover both sides does not report a correction.
type Match struct {
	Slot    string
	Value   string
	OldHint string
	Tier    domain.FactTier
}

// MatcherFunc is a pure pattern matcher over one statement. Matchers are
// independently testable and are all run in full; no matcher's hit stops
// the others from being consulted.
type MatcherFunc func(text string) []Match

type slotDef struct {
	slot     string
	numeric  bool
	keywords []string
	// direct patterns capture (new, old); hedged capture (old, new);
	// declare capture (value).
	direct  []*regexp.Regexp
	hedged  []*regexp.Regexp
	declare []*regexp.Regexp
}

// The pattern tables are data: adding a slot means adding a slotDef, not
// engine code.
var slotDefs = []slotDef{
	{
		slot:     "name",
		keywords: []string{"name", "called"},
		direct: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy name is (?:actually )?([A-Za-z][\w'-]*),? not ([A-Za-z][\w'-]*)`),
		},
		hedged: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi said my name was ([A-Za-z][\w'-]*),? but it(?:'s| is) (?:actually |really )?([A-Za-z][\w'-]*)`),
		},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy name is ([A-Za-z][\w'-]*)`),
			regexp.MustCompile(`(?i)\bcall me ([A-Za-z][\w'-]*)`),
		},
	},
	{
		slot:     "age",
		numeric:  true,
		keywords: []string{"age", "old", "years"},
		direct: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi(?:'m| am) actually (\d{1,3})(?: years old)?,? not (\d{1,3})`),
			regexp.MustCompile(`(?i)\bactually (\d{1,3}),? not (\d{1,3})`),
		},
		hedged: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi said (?:i was )?(\d{1,3}) but i(?:'m| am) (?:closer to |more like )?(\d{1,3})`),
		},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi(?:'m| am)(?: now| currently)? (\d{1,3})(?: years old)?\b`),
			regexp.MustCompile(`(?i)\bi (?:just )?turned (\d{1,3})\b`),
			regexp.MustCompile(`(?i)\bmy age is (\d{1,3})\b`),
		},
	},
	{
		slot:     "employer",
		keywords: []string{"work", "employer", "company", "job"},
		direct: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi work (?:at|for) (.+?),? not (?:at |for )?(.+?)(?:[.!?]|$)`),
			regexp.MustCompile(`(?i)\bmy employer is (?:actually )?(.+?),? not (.+?)(?:[.!?]|$)`),
		},
		hedged: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi said i work(?:ed)? (?:at|for) (.+?),? but (?:it's|i'm) (?:actually |now )?(?:at |with )?(.+?)(?:[.!?]|$)`),
		},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi (?:now )?work (?:at|for) (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi(?:'m| am) employed (?:at|by) (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bmy employer is (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi used to work (?:at|for) .+? but (?:i'm |i am )?(?:now )?(?:at|with) (.+?)(?:[.!?,]|$)`),
		},
	},
	{
		slot:     "location",
		keywords: []string{"live", "location", "based", "city", "moved"},
		direct: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi live in (.+?),? not (?:in )?(.+?)(?:[.!?]|$)`),
		},
		hedged: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi said (?:i lived in|i was in) (.+?),? but (?:it's|i'm) (?:actually |really |now )?(?:in )?(.+?)(?:[.!?]|$)`),
		},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi (?:now )?live in (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi(?:'m| am) (?:based|living) in (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi (?:just )?moved to (.+?)(?:[.!?,]|$)`),
		},
	},
	{
		slot:     "role",
		keywords: []string{"role", "title", "position", "engineer", "manager"},
		direct: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy (?:role|title) is (?:actually )?(.+?),? not (.+?)(?:[.!?]|$)`),
		},
		hedged: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bi said (?:my (?:role|title) was|i was a?n?) (.+?),? but it(?:'s| is) (?:closer to|more like) (?:a |an )?(.+?)(?:[.!?]|$)`),
		},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy (?:role|title|position) is (?:a |an )?(.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi work as (?:a|an) (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi(?:'m| am) (?:a|an) ((?:\w+ ){0,2}(?:engineer|manager|designer|developer|analyst|scientist|consultant))\b`),
		},
	},
	{
		slot:     "hobby",
		keywords: []string{"hobby", "enjoy", "free time"},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy (?:main )?hobby is (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi enjoy (\w+ing(?: \w+)?)`),
		},
	},
	{
		slot:     "skill",
		keywords: []string{"skill", "good at"},
		declare: []*regexp.Regexp{
			regexp.MustCompile(`(?i)\bmy (?:main |strongest )?skill is (.+?)(?:[.!?,]|$)`),
			regexp.MustCompile(`(?i)\bi(?:'m| am) good at (.+?)(?:[.!?,]|$)`),
		},
	},
}

// trailingAdverbs are stripped from captured values during cleanup; they
// carry temporal signal for the classifier but are not part of the value.
var trailingAdverbs = []string{"now", "currently", "these days", "at the moment", "right now"}

type Extractor struct {
	matchers []MatcherFunc
	numeric  map[string]bool
	keywords map[string][]string
	logger   *zap.Logger
}

func NewExtractor(logger *zap.Logger) *Extractor {
	e := &Extractor{
		numeric:  make(map[string]bool),
		keywords: make(map[string][]string),
		logger:   logger,
	}
	for _, def := range slotDefs {
		e.numeric[def.slot] = def.numeric
		e.keywords[def.slot] = def.keywords
		e.matchers = append(e.matchers,
			correctionMatcher(def.slot, def.direct, domain.TierDirectCorrection),
			correctionMatcher(def.slot, def.hedged, domain.TierHedgedCorrection),
			declarationMatcher(def.slot, def.declare),
		)
	}
	return e
}

func correctionMatcher(slot string, patterns []*regexp.Regexp, tier domain.FactTier) MatcherFunc {
	return func(text string) []Match {
		var out []Match
		for _, re := range patterns {
			groups := re.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
			newVal, oldVal := groups[1], groups[2]
			if tier == domain.TierHedgedCorrection {
				// Hedged patterns read "I said OLD but it's NEW".
				oldVal, newVal = groups[1], groups[2]
			}
			newVal = cleanValue(newVal)
			oldVal = cleanValue(oldVal)
			// Both sides must be recoverable for a correction; a partial
			// hit is not a correction at all.
			if newVal == "" || oldVal == "" {
				continue
			}
			out = append(out, Match{Slot: slot, Value: newVal, OldHint: oldVal, Tier: tier})
		}
		return out
	}
}

func declarationMatcher(slot string, patterns []*regexp.Regexp) MatcherFunc {
	return func(text string) []Match {
		var out []Match
		for _, re := range patterns {
			groups := re.FindStringSubmatch(text)
			if groups == nil {
				continue
			}
			val := cleanValue(groups[1])
			if val == "" {
				continue
			}
			out = append(out, Match{Slot: slot, Value: val, Tier: domain.TierDeclaration})
		}
		return out
	}
}

// Extract runs every matcher over the statement and collects one fact per
// slot, preferring the highest tier when several matchers hit the same
// slot. Facts for different slots are all returned; each is processed
// independently downstream.
func (e *Extractor) Extract(text string) []domain.ExtractedFact {
	best := make(map[string]Match)
	var order []string

	for _, matcher := range e.matchers {
		for _, m := range matcher(text) {
			prev, seen := best[m.Slot]
			if !seen {
				best[m.Slot] = m
				order = append(order, m.Slot)
				continue
			}
			if tierRank(m.Tier) < tierRank(prev.Tier) {
				best[m.Slot] = m
			}
		}
	}

	facts := make([]domain.ExtractedFact, 0, len(order))
	for _, slot := range order {
		m := best[slot]
		facts = append(facts, domain.ExtractedFact{
			Slot:    m.Slot,
			Value:   m.Value,
			OldHint: m.OldHint,
			RawText: text,
			Tier:    m.Tier,
		})
	}
	return facts
}

func tierRank(t domain.FactTier) int {
	switch t {
	case domain.TierDirectCorrection:
		return 0
	case domain.TierHedgedCorrection:
		return 1
	default:
		return 2
	}
}

// Normalize reduces a raw value to its comparable form: digits for
// numeric slots, lowercased trimmed text for categorical ones.
func (e *Extractor) Normalize(slot, value string) (string, error) {
	v := cleanValue(value)
	if v == "" {
		return "", ErrSlotNormalizationFailure
	}
	if e.numeric[slot] {
		digits := regexp.MustCompile(`-?\d+(?:\.\d+)?`).FindString(v)
		if digits == "" {
			return "", ErrSlotNormalizationFailure
		}
		if _, err := strconv.ParseFloat(digits, 64); err != nil {
			return "", ErrSlotNormalizationFailure
		}
		return digits, nil
	}
	return strings.ToLower(v), nil
}

// IsNumeric reports whether the slot holds numeric values.
func (e *Extractor) IsNumeric(slot string) bool {
	return e.numeric[slot]
}

// InferSlots maps a free-text query onto the slots it asks about, using
// the same vocabulary the matchers extract into.
func (e *Extractor) InferSlots(text string) []string {
	lower := strings.ToLower(text)
	var slots []string
	for _, def := range slotDefs {
		if lower == def.slot {
			slots = append(slots, def.slot)
			continue
		}
		for _, kw := range def.keywords {
			if strings.Contains(lower, kw) {
				slots = append(slots, def.slot)
				break
			}
		}
	}
	return slots
}

// KnownSlot reports whether the slot is in the extraction vocabulary.
func (e *Extractor) KnownSlot(slot string) bool {
	_, ok := e.keywords[slot]
	return ok
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, ".,!?;:\"'")
	v = strings.Join(strings.Fields(v), " ")
	lower := strings.ToLower(v)
	for _, adv := range trailingAdverbs {
		if strings.HasSuffix(lower, " "+adv) {
			v = strings.TrimSpace(v[:len(v)-len(adv)-1])
			lower = strings.ToLower(v)
		}
	}
	return v
}
