package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// DefaultDosage is assigned when a fragment carries no explicit dose amount.
const DefaultDosage = "1 tablet"

var (
	// name tokens, optional strength, remainder
	prescriptionPattern = regexp.MustCompile(`(?i)^[ \t]*(?:[-*•][ \t]*|\d+[.)][ \t]+)?([a-z][a-z'\-]*(?:[ \t]+[a-z][a-z'\-]*)*)(?:[ \t]+(\d+(?:\.\d+)?[ \t]*(?:mg|mcg|µg|g|ml|iu|units?|%)))?(?:[ \t]*[-–:,][ \t]*|[ \t]+|$)(.*)$`)

	dosagePattern = regexp.MustCompile(`(?i)\b(?:\d+(?:\.\d+)?|one|two|three|half)[ \t]*(?:tablets?|tabs?|capsules?|caps?|puffs?|drops?|sachets?|teaspoons?|tsp|ml)\b`)

	separatorTrim = " \t-–:,;"
)

// instructionWords start the dosing instructions of a fragment that has no
// strength token, e.g. "Amoxicillin three times daily".
var instructionWords = map[string]bool{
	"once": true, "twice": true, "thrice": true, "daily": true, "every": true,
	"as": true, "at": true, "before": true, "after": true, "with": true,
	"take": true, "one": true, "two": true, "three": true, "half": true,
	"tablet": true, "tablets": true, "capsule": true, "capsules": true,
	"bid": true, "tid": true, "qid": true, "qd": true, "od": true, "prn": true,
	"morning": true, "night": true, "nightly": true, "weekly": true, "for": true,
}

// PrescriptionResult holds the medications decomposed from a set of fragments
// and the fragments that could not be decomposed.
type PrescriptionResult struct {
	Medications []domain.Medication
	Dropped     []string
}

// PrescriptionParser decomposes raw prescription fragments into medications.
type PrescriptionParser struct {
	now   func() time.Time
	newID func(fragment string, index int) string
}

// PrescriptionOption configures a PrescriptionParser
type PrescriptionOption func(*PrescriptionParser)

// WithClock sets the clock used for start dates.
func WithClock(now func() time.Time) PrescriptionOption {
	return func(p *PrescriptionParser) {
		p.now = now
	}
}

// WithIDFunc overrides medication ID generation.
func WithIDFunc(fn func(fragment string, index int) string) PrescriptionOption {
	return func(p *PrescriptionParser) {
		p.newID = fn
	}
}

// NewPrescriptionParser creates a parser. IDs default to name-based UUIDs so
// that parsing the same text twice gives identical output.
func NewPrescriptionParser(opts ...PrescriptionOption) *PrescriptionParser {
	p := &PrescriptionParser{
		now:   time.Now,
		newID: ContentID,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ContentID derives a medication ID from the fragment text and its position.
func ContentID(fragment string, index int) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(strings.ToLower(fragment)+"#"+strconv.Itoa(index))).String()
}

// RandomID generates a fresh random medication ID.
func RandomID(string, int) string {
	return uuid.NewString()
}

// Parse decomposes each fragment. Fragments listing several medications
// separated by semicolons are split first. Fragments that do not decompose are
// reported in Dropped rather than returned as errors.
func (p *PrescriptionParser) Parse(fragments []string) PrescriptionResult {
	result := PrescriptionResult{
		Medications: []domain.Medication{},
		Dropped:     []string{},
	}

	start := today(p.now())
	index := 0
	for _, fragment := range fragments {
		for _, piece := range strings.Split(fragment, ";") {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			med, ok := decompose(piece)
			if !ok {
				result.Dropped = append(result.Dropped, piece)
				continue
			}
			med.ID = p.newID(piece, index)
			startDate := start
			med.StartDate = &startDate
			result.Medications = append(result.Medications, med)
			index++
		}
	}
	return result
}

// decompose applies the prescription pattern to a single fragment.
func decompose(fragment string) (domain.Medication, bool) {
	m := prescriptionPattern.FindStringSubmatch(fragment)
	if m == nil {
		return domain.Medication{}, false
	}

	name := strings.TrimSpace(m[1])
	strength := strings.Join(strings.Fields(m[2]), "")
	rest := strings.TrimSpace(m[3])

	if strength == "" {
		name, rest = splitInstructions(name, rest)
	}
	if len(name) < 2 {
		return domain.Medication{}, false
	}

	dosage := DefaultDosage
	if loc := dosagePattern.FindStringIndex(rest); loc != nil {
		dosage = rest[loc[0]:loc[1]]
		rest = rest[:loc[0]] + " " + rest[loc[1]:]
	}

	return domain.Medication{
		Name:      name,
		Strength:  strength,
		Dosage:    dosage,
		Frequency: strings.Trim(strings.Join(strings.Fields(rest), " "), separatorTrim),
	}, true
}

// splitInstructions moves trailing instruction words out of a name that was
// not terminated by a strength token.
func splitInstructions(name, rest string) (string, string) {
	words := strings.Fields(name)
	for i, w := range words {
		if i > 0 && instructionWords[strings.ToLower(w)] {
			tail := strings.Join(words[i:], " ")
			if rest != "" {
				tail += " " + rest
			}
			return strings.Join(words[:i], " "), tail
		}
	}
	return name, rest
}

func today(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
