package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// Vitals patterns require a label or a unit so that bare numbers elsewhere in
// the note are never read as vitals.
var (
	bpLabelPattern = regexp.MustCompile(`(?i)\b(?:bp|blood[ \t]+pressure)[ \t]*[:=\-]?[ \t]*(\d{2,3})[ \t]*/[ \t]*(\d{2,3})`)
	bpUnitPattern  = regexp.MustCompile(`(?i)\b(\d{2,3})[ \t]*/[ \t]*(\d{2,3})[ \t]*mm[ \t]*hg\b`)
	heartRate      = regexp.MustCompile(`(?i)\b(\d{2,3})[ \t]*(?:bpm|beats[ \t]+per[ \t]+min(?:ute)?|/min)\b`)
	temperature    = regexp.MustCompile(`(?i)\b(\d{2,3}(?:\.\d+)?)[ \t]*(?:°|deg(?:rees?)?)?[ \t]*(celsius|fahrenheit|c|f)\b`)
	weight         = regexp.MustCompile(`(?i)\b(\d{1,3}(?:\.\d+)?)[ \t]*(kgs?|lbs?|pounds?)\b`)
	height         = regexp.MustCompile(`(?i)\b(\d{2,3}(?:\.\d+)?)[ \t]*(cm|centimet(?:er|re)s?|inches)\b`)
)

// ExtractVitals returns the first reading of each vital found in text, or nil
// when none of them is present. Callers must branch on nil rather than on an
// all-empty structure.
func ExtractVitals(text string) *domain.Vitals {
	var v domain.Vitals
	found := false

	if bp := findBloodPressure(text); bp != nil {
		v.BloodPressure = bp
		found = true
	}

	if m := heartRate.FindStringSubmatch(text); m != nil {
		if hr, err := strconv.Atoi(m[1]); err == nil {
			v.HeartRate = &hr
			found = true
		}
	}

	if m := findMeasurement(temperature, text); m != nil {
		m.Unit = temperatureUnit(m.Unit)
		v.Temperature = m
		found = true
	}

	if m := findMeasurement(weight, text); m != nil {
		v.Weight = m
		found = true
	}

	if m := findMeasurement(height, text); m != nil {
		v.Height = m
		found = true
	}

	if !found {
		return nil
	}
	return &v
}

func findBloodPressure(text string) *domain.BloodPressure {
	for _, p := range []*regexp.Regexp{bpLabelPattern, bpUnitPattern} {
		m := p.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		sys, err1 := strconv.Atoi(m[1])
		dia, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		return &domain.BloodPressure{Systolic: sys, Diastolic: dia}
	}
	return nil
}

func findMeasurement(p *regexp.Regexp, text string) *domain.Measurement {
	m := p.FindStringSubmatch(text)
	if m == nil {
		return nil
	}
	value, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil
	}
	return &domain.Measurement{Value: value, Unit: strings.ToLower(m[2])}
}

func temperatureUnit(u string) string {
	if strings.HasPrefix(strings.ToLower(u), "c") {
		return "C"
	}
	return "F"
}
