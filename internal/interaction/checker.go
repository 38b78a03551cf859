// Package interaction flags known interacting drug pairs and duplicated
// therapeutic classes in a medication list. It is a heuristic advisory aid,
// not a pharmacological reference.
package interaction

import (
	"fmt"
	"strings"

	"github.com/health-keeper-mcp-server/internal/domain"
)

// TherapeuticClass groups medications for duplicate detection.
type TherapeuticClass string

const (
	Antidiabetic     TherapeuticClass = "antidiabetic"
	Antihypertensive TherapeuticClass = "antihypertensive"
	Statin           TherapeuticClass = "statin"
	Antidepressant   TherapeuticClass = "antidepressant"
	Anticoagulant    TherapeuticClass = "anticoagulant"
	Other            TherapeuticClass = "other"
)

// drugGroup is a named set of name substrings.
type drugGroup struct {
	label string
	names []string
}

var (
	anticoagulants = drugGroup{"anticoagulant", []string{
		"warfarin", "heparin", "enoxaparin", "apixaban", "rivaroxaban", "dabigatran", "edoxaban",
	}}
	nsaids = drugGroup{"NSAID", []string{
		"ibuprofen", "naproxen", "diclofenac", "aspirin", "celecoxib", "indomethacin", "ketorolac", "meloxicam",
	}}
	aceInhibitors = drugGroup{"ACE inhibitor", []string{
		"lisinopril", "enalapril", "ramipril", "captopril", "benazepril", "perindopril", "quinapril",
	}}
	potassiumSparing = drugGroup{"potassium-sparing diuretic", []string{
		"spironolactone", "eplerenone", "amiloride", "triamterene",
	}}
)

// pairRule flags any medication of group a taken together with one of group b.
type pairRule struct {
	a, b drugGroup
	risk string
}

var pairRules = []pairRule{
	{anticoagulants, nsaids, "increased bleeding risk"},
	{aceInhibitors, potassiumSparing, "hyperkalemia risk"},
}

// classOrder fixes both classification precedence and warning order.
var classOrder = []TherapeuticClass{Antidiabetic, Antihypertensive, Statin, Antidepressant, Anticoagulant}

var classMembers = map[TherapeuticClass][]string{
	Antidiabetic: {
		"metformin", "glipizide", "glimepiride", "glyburide", "gliclazide", "insulin",
		"sitagliptin", "empagliflozin", "dapagliflozin", "pioglitazone", "liraglutide", "semaglutide",
	},
	Antihypertensive: {
		"lisinopril", "enalapril", "ramipril", "captopril", "losartan", "valsartan", "telmisartan",
		"amlodipine", "nifedipine", "metoprolol", "atenolol", "bisoprolol", "hydrochlorothiazide", "chlorthalidone",
	},
	Statin: {
		"atorvastatin", "simvastatin", "rosuvastatin", "pravastatin", "lovastatin", "pitavastatin",
	},
	Antidepressant: {
		"sertraline", "fluoxetine", "citalopram", "escitalopram", "paroxetine", "venlafaxine",
		"duloxetine", "bupropion", "amitriptyline", "mirtazapine",
	},
	Anticoagulant: anticoagulants.names,
}

// Checker runs the static interaction tables. The zero value is ready to use.
type Checker struct{}

// NewChecker creates an interaction checker
func NewChecker() *Checker {
	return &Checker{}
}

// Check inspects meds for interacting pairs and duplicate therapeutic
// classes. Every list in the report is non-nil; Contraindications is always
// empty.
func (c *Checker) Check(meds []domain.Medication) domain.InteractionReport {
	return domain.InteractionReport{
		Interactions:      pairInteractions(meds),
		Warnings:          duplicateClassWarnings(meds),
		Contraindications: []string{},
	}
}

// Classify returns the first class in fixed order whose member list matches
// name by case-insensitive substring, or Other.
func Classify(name string) TherapeuticClass {
	lower := strings.ToLower(name)
	for _, class := range classOrder {
		if containsAny(lower, classMembers[class]) {
			return class
		}
	}
	return Other
}

func pairInteractions(meds []domain.Medication) []string {
	out := []string{}
	seen := make(map[string]bool)
	for _, rule := range pairRules {
		for i, a := range meds {
			if !containsAny(strings.ToLower(a.Name), rule.a.names) {
				continue
			}
			for j, b := range meds {
				if i == j || !containsAny(strings.ToLower(b.Name), rule.b.names) {
					continue
				}
				msg := fmt.Sprintf("%s (%s) with %s (%s): %s",
					a.Name, rule.a.label, b.Name, rule.b.label, rule.risk)
				if !seen[msg] {
					seen[msg] = true
					out = append(out, msg)
				}
			}
		}
	}
	return out
}

func duplicateClassWarnings(meds []domain.Medication) []string {
	members := make(map[TherapeuticClass][]string)
	seen := make(map[string]bool)
	for _, med := range meds {
		key := strings.ToLower(strings.TrimSpace(med.Name))
		if seen[key] {
			continue
		}
		seen[key] = true
		class := Classify(med.Name)
		if class == Other {
			continue
		}
		members[class] = append(members[class], med.Name)
	}

	out := []string{}
	for _, class := range classOrder {
		if names := members[class]; len(names) > 1 {
			out = append(out, fmt.Sprintf("multiple %s medications: %s", class, strings.Join(names, ", ")))
		}
	}
	return out
}

func containsAny(s string, substrings []string) bool {
	for _, sub := range substrings {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
