// Package recognizer turns raw drawing annotations into typed, dimensioned,
// confidence-scored components.  Recognition is a fixed sequence of stages:
// classification against an ordered pattern library, dimension extraction,
// code-plausibility checking, optional external verification and pricing.
// Every stage only touches the component it is given, so independent labels
// can be recognised concurrently.
package recognizer

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"

	"github.com/turtacn/KeyQTO/internal/domain/component"
)

// SeedConfidence is the confidence assigned on a category match.
const SeedConfidence = 0.85

// ---------------------------------------------------------------------------
// Rule
// ---------------------------------------------------------------------------

// Rule maps a set of alternative patterns to one category.
type Rule struct {
	Category string
	Kind     component.Kind
	Family   component.Family
	Grade    string // fixed grade; empty means read it from the label text
	Code     string // bill-of-quantities item code
	Unit     string
	Patterns []*regexp.Regexp
}

// Matches reports whether any pattern of r matches text.
func (r Rule) Matches(text string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func rule(category string, kind component.Kind, family component.Family, grade, code, unit string, patterns ...string) Rule {
	compiled := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		compiled[i] = regexp.MustCompile(p)
	}
	return Rule{
		Category: category,
		Kind:     kind,
		Family:   family,
		Grade:    grade,
		Code:     code,
		Unit:     unit,
		Patterns: compiled,
	}
}

// DefaultRules returns the built-in pattern library.  Order is significant:
// grade-specific categories precede their generic forms, and structural
// members precede the reinforcement that is often annotated on them.
func DefaultRules() []Rule {
	const (
		concrete = component.FamilyConcrete
		steel    = component.FamilyReinforcement
		masonry  = component.FamilyMasonry
		opening  = component.FamilyOpening
		m3       = component.UnitCubicMetre
		m2       = component.UnitSquareMetre
		tonne    = component.UnitTonne
	)
	return []Rule{
		rule("C35 concrete column", component.KindColumn, concrete, "C35", "010502001", m3,
			`C35\s*(?:混凝土|砼)?\s*(?:框架)?柱`, `(?i)C35\s*(?:concrete\s*)?column`),
		rule("C30 concrete column", component.KindColumn, concrete, "C30", "010502001", m3,
			`C30\s*(?:混凝土|砼)?\s*(?:框架)?柱`, `(?i)C30\s*(?:concrete\s*)?column`),
		rule("concrete column", component.KindColumn, concrete, "", "010502001", m3,
			`柱`, `\b(?:KZZ|KZ|GZ)\d{1,3}`, `(?i)\bcolumns?\b`),
		rule("C30 concrete beam", component.KindBeam, concrete, "C30", "010503002", m3,
			`C30\s*(?:混凝土|砼)?\s*(?:框架)?梁`, `(?i)C30\s*(?:concrete\s*)?beam`),
		rule("concrete beam", component.KindBeam, concrete, "", "010503002", m3,
			`梁`, `\b(?:WKL|KL|LL|XL)\d{1,3}`, `(?i)\bbeams?\b`),
		rule("C30 concrete slab", component.KindSlab, concrete, "C30", "010505003", m3,
			`C30\s*(?:混凝土|砼)?\s*(?:楼|屋面|现浇)?板`, `(?i)C30\s*(?:concrete\s*)?slab`),
		rule("concrete slab", component.KindSlab, concrete, "", "010505003", m3,
			`(?:楼|屋面|现浇)板`, `板厚`, `\b(?:LB|WB)\d+`, `(?i)\bslabs?\b`),
		rule("concrete shear wall", component.KindWall, concrete, "", "010504001", m3,
			`剪力墙`, `\bQ\d{1,2}\b`, `(?i)shear\s*walls?`),
		rule("brick masonry wall", component.KindWall, masonry, "", "010401003", m3,
			`砖墙`, `砖砌`, `(?i)\bbrick`),
		rule("block masonry wall", component.KindWall, masonry, "", "010402001", m3,
			`砌块`, `加气`, `(?i)\bblock`),
		rule("concrete wall", component.KindWall, concrete, "", "010504001", m3,
			`墙`, `(?i)\bwalls?\b`),
		rule("door", component.KindDoor, opening, "", "010801001", m2,
			`门`, `\b(?:FM|M)\d{4}\b`, `(?i)\bdoors?\b`),
		rule("window", component.KindWindow, opening, "", "010807001", m2,
			`窗`, `\b(?:TC|GC|C)\d{4}\b`, `(?i)\bwindows?\b`),
		rule("concrete foundation", component.KindFoundation, concrete, "", "010501003", m3,
			`基础`, `承台`, `\b(?:DJ|CT|JC)\d+`, `(?i)\b(?:foundation|footing|pile\s*cap)s?\b`),
		rule("HRB400 rebar", component.KindRebar, steel, "HRB400", "010515001", tonne,
			`HRB400E?`),
		rule("HPB300 rebar", component.KindRebar, steel, "HPB300", "010515001", tonne,
			`HPB300`),
		rule("rebar", component.KindRebar, steel, "", "010515001", tonne,
			`钢筋`, `[ΦφØø]\s*\d`, `%%[cC]\s*\d`, `(?i)\b(?:rebar|reinforcement)\b`),
	}
}

var (
	concreteGradeRe = regexp.MustCompile(`\bC(15|20|25|30|35|40|45|50|55|60)\b`)
	steelGradeRe    = regexp.MustCompile(`\b(HRB\d{3}E?|HRBF\d{3}|HPB300|CRB\d{3})\b`)
)

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

// Classifier assigns a category to an annotation using the first matching
// rule.  It does not rank multiple matching rules; declaration order wins.
type Classifier struct {
	rules []Rule
}

// NewClassifier builds a classifier over rules.  A nil slice selects
// DefaultRules.
func NewClassifier(rules []Rule) *Classifier {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Classifier{rules: rules}
}

// Rules returns the rules in match order.
func (c *Classifier) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify returns a Pending component for the first matching rule, or nil
// when no rule matches or the annotation text is blank.
func (c *Classifier) Classify(ann component.TextAnnotation) *component.Component {
	text := NormaliseText(ann.Content)
	if text == "" {
		return nil
	}
	for _, r := range c.rules {
		if !r.Matches(text) {
			continue
		}
		comp := component.New(r.Category, r.Kind, SeedConfidence)
		comp.Family = r.Family
		comp.Code = r.Code
		comp.Unit = r.Unit
		comp.Grade = r.Grade
		if comp.Grade == "" {
			comp.Grade = gradeFromText(r.Family, text)
		}
		comp.SourceText = ann.Content
		comp.Layer = ann.Layer
		comp.Position = ann.Position
		return comp
	}
	return nil
}

func gradeFromText(family component.Family, text string) string {
	var re *regexp.Regexp
	switch family {
	case component.FamilyConcrete:
		re = concreteGradeRe
	case component.FamilyReinforcement:
		re = steelGradeRe
	default:
		return ""
	}
	if m := re.FindString(text); m != "" {
		return m
	}
	return ""
}

// NormaliseText applies NFC normalisation, folds full-width forms to their
// ASCII equivalents and collapses whitespace.
func NormaliseText(text string) string {
	text = width.Fold.String(norm.NFC.String(text))
	var b strings.Builder
	b.Grow(len(text))
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace {
				b.WriteRune(' ')
			}
			prevSpace = true
			continue
		}
		b.WriteRune(r)
		prevSpace = false
	}
	return strings.TrimSpace(b.String())
}

//Personal.AI order the ending
