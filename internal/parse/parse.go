// Package parse extracts structured facts from free-text vision model answers.
//
// Information Hiding:
// - Regular grammars for slot numbers, coordinate pairs and yes/no verdicts
// - JSON listing support for models that answer with objects
// - Anchor segmentation that ties a coordinate to the item name it follows
//
// The parser never guesses. Text that does not match the requested grammar
// yields ErrParseFailure, and an explicit "not there" answer yields ErrAbsent.
// Given the same text every function returns the same result.
package parse

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Shape is the kind of value a caller expects from an answer.
type Shape int

const (
	SlotIndex Shape = iota
	Coordinate
	Boolean
	FreeText
)

func (s Shape) String() string {
	switch s {
	case SlotIndex:
		return "slot"
	case Coordinate:
		return "coordinate"
	case Boolean:
		return "boolean"
	case FreeText:
		return "text"
	default:
		return fmt.Sprintf("shape(%d)", int(s))
	}
}

// SlotCount is the number of inventory slots. Valid indices are 0..SlotCount-1.
const SlotCount = 28

var (
	// ErrParseFailure means the answer did not match the expected grammar.
	ErrParseFailure = errors.New("parse failure")

	// ErrOutOfBounds means a parsed coordinate lies outside the window.
	// It is a parse failure: the point is rejected, never clamped.
	ErrOutOfBounds = fmt.Errorf("%w: coordinate outside window bounds", ErrParseFailure)

	// ErrAbsent means the model explicitly reported the item as not present.
	ErrAbsent = errors.New("item reported absent")
)

// Value is a parsed answer. Only the fields for Shape are meaningful.
type Value struct {
	Shape Shape
	Slot  int
	X     int
	Y     int
	Bool  bool
	Text  string
}

var (
	fencePattern = regexp.MustCompile("```[A-Za-z]*")

	number = `(-?\d+(?:\.\d+)?)`

	bracketPair = regexp.MustCompile(`[\[(]\s*` + number + `\s*,\s*` + number + `\s*[\])]`)
	labeledPair = regexp.MustCompile(`(?i)\bx"?\s*[:=]\s*` + number + `[^0-9\-]{0,12}?\by"?\s*[:=]\s*` + number)

	slotPhrase = regexp.MustCompile(`(?i)\bslot\s*(?:#|number|no\.?|index)?\s*:?\s*(-?\d+)\b`)
	// A bare integer counts only when it is all there is, so "2nd row" or
	// "3 logs" never become slot numbers.
	bareSlot = regexp.MustCompile(`^\s*[:=#,]?\s*(-?\d+)\s*[.!]?\s*$`)

	absencePhrase = regexp.MustCompile(`(?i)\b(not found|not visible|not present|not in|no|none|absent|missing|cannot find|can't find|could not find|couldn't find|unable to (?:find|locate)|does not (?:contain|have)|doesn't (?:contain|have))\b`)
	idiomPhrase   = regexp.MustCompile(`(?i)\bno (?:doubt|problem|question|worries)\b`)
	// negatedAnchor matches a negation that governs the noun right after it:
	// "no logs", "can't see any logs", "without a tinderbox".
	negatedAnchor = regexp.MustCompile(`(?i)(?:\b(?:no|without)|(?:\bnot|n't|\bcannot)\s+(?:see|find|locate|spot|detect|notice|have|contain|any)(?:\s+(?:any|see|find))?)\s+(?:(?:any|the|a|an|more|some|your)\s+)?$`)
	clauseEnd     = regexp.MustCompile(`[.;!?](?:\s|$)|\n`)

	wordPattern = regexp.MustCompile(`[a-z']+`)
)

// terseWords may accompany a value in an answer that does not name the item.
var terseWords = map[string]bool{
	"the": true, "item": true, "its": true, "it's": true, "slot": true,
	"located": true, "location": true, "position": true, "coordinate": true,
	"coordinates": true, "center": true, "centre": true, "pixel": true,
	"pixels": true, "answer": true, "here": true, "found": true, "not": true,
	"none": true, "missing": true, "absent": true, "visible": true, "present": true,
}

var affirmations = map[string]bool{
	"yes": true, "yeah": true, "yep": true, "true": true,
	"correct": true, "affirmative": true, "indeed": true,
}

var negations = map[string]bool{
	"no": true, "nope": true, "not": true, "false": true,
	"incorrect": true, "negative": true, "none": true, "never": true,
}

// Extract parses text as a value of the given shape.
func Extract(text string, shape Shape) (Value, error) {
	text = normalize(text)
	switch shape {
	case SlotIndex:
		return extractSlot(text)
	case Coordinate:
		return extractCoordinate(text)
	case Boolean:
		return extractBoolean(text)
	case FreeText:
		return extractFreeText(text)
	default:
		return Value{}, fmt.Errorf("%w: unknown shape %s", ErrParseFailure, shape)
	}
}

// ExtractNear parses a slot or coordinate that the answer associates with
// anchor, typically an item name. JSON listings are matched by name. In prose
// the value must sit in the same clause as a mention of anchor, before the
// clause ends or any of others is mentioned; mentions are tried from the last
// to the first. An answer that never names anchor is accepted only when it is
// terse and names none of others. Boolean and FreeText ignore the anchor.
func ExtractNear(text string, shape Shape, anchor string, others ...string) (Value, error) {
	if shape != SlotIndex && shape != Coordinate {
		return Extract(text, shape)
	}
	text = normalize(text)
	anchor = strings.ToLower(strings.TrimSpace(anchor))
	if anchor == "" {
		return Extract(text, shape)
	}

	if v, ok, err := fromListing(text, shape, anchor); ok {
		return v, err
	}

	names := []string{anchor}
	for _, o := range others {
		if o = strings.ToLower(strings.TrimSpace(o)); o != "" && o != anchor {
			names = append(names, o)
		}
	}

	lower := strings.ToLower(text)
	mentions := indexAll(lower, anchor)
	if len(mentions) == 0 {
		return extractUnnamed(text, shape, anchor, names[1:])
	}

	for k := len(mentions) - 1; k >= 0; k-- {
		if negatedAnchor.MatchString(lower[:mentions[k]]) {
			return Value{}, fmt.Errorf("%w: %q", ErrAbsent, anchor)
		}
		start := mentions[k] + len(anchor)
		end := clauseBoundary(lower, start, names)
		if v, ok, err := decideClause(text[start:end], shape, anchor); ok {
			return v, err
		}
	}
	return Value{}, fmt.Errorf("%w: no %s follows %q in the same clause", ErrParseFailure, shape, anchor)
}

func indexAll(s, sub string) []int {
	var at []int
	for off := 0; ; {
		i := strings.Index(s[off:], sub)
		if i < 0 {
			return at
		}
		at = append(at, off+i)
		off += i + len(sub)
	}
}

// clauseBoundary returns where the clause starting at start ends: the first
// sentence break or mention of any name, whichever comes first.
func clauseBoundary(lower string, start int, names []string) int {
	end := len(lower)
	if loc := clauseEnd.FindStringIndex(lower[start:]); loc != nil {
		end = start + loc[0]
	}
	for _, n := range names {
		if i := strings.Index(lower[start:end], n); i >= 0 {
			end = start + i
		}
	}
	return end
}

// decideClause inspects the clause after one anchor mention. ok is false when
// the clause says nothing either way.
func decideClause(clause string, shape Shape, anchor string) (Value, bool, error) {
	absentAt := absenceIndex(clause)

	var v Value
	var err error
	at := -1
	switch shape {
	case SlotIndex:
		v, at, err = firstSlot(clause)
	case Coordinate:
		v, at, err = firstCoordinate(clause)
	}

	if absentAt >= 0 && (at < 0 || absentAt < at) {
		return Value{}, true, fmt.Errorf("%w: %q", ErrAbsent, anchor)
	}
	if at < 0 {
		return Value{}, false, nil
	}
	return v, true, err
}

// extractUnnamed handles an answer that never mentions anchor.
func extractUnnamed(text string, shape Shape, anchor string, others []string) (Value, error) {
	lower := strings.ToLower(text)
	for _, o := range others {
		if strings.Contains(lower, o) {
			return Value{}, fmt.Errorf("%w: answer names %q, not %q", ErrParseFailure, o, anchor)
		}
	}
	for _, w := range wordPattern.FindAllString(lower, -1) {
		if len(w) > 2 && !terseWords[w] {
			return Value{}, fmt.Errorf("%w: answer does not name %q", ErrParseFailure, anchor)
		}
	}
	return Extract(text, shape)
}

// absenceIndex returns the offset of the first absence phrase in s, or -1.
// Idioms such as "no doubt" are not absence.
func absenceIndex(s string) int {
	s = idiomPhrase.ReplaceAllStringFunc(s, func(m string) string {
		return strings.Repeat(" ", len(m))
	})
	if loc := absencePhrase.FindStringIndex(s); loc != nil {
		return loc[0]
	}
	return -1
}

func normalize(text string) string {
	return strings.TrimSpace(fencePattern.ReplaceAllString(text, " "))
}

func extractSlot(text string) (Value, error) {
	if v, at, err := firstSlot(text); at >= 0 {
		return v, err
	}
	if absenceIndex(text) >= 0 {
		return Value{}, fmt.Errorf("%w: no slot reported", ErrAbsent)
	}
	return Value{}, fmt.Errorf("%w: no slot number in %q", ErrParseFailure, preview(text))
}

// firstSlot returns the first slot phrase in s and its offset. Without a
// phrase, s must be nothing but an integer.
func firstSlot(s string) (Value, int, error) {
	if m := slotPhrase.FindStringSubmatchIndex(s); m != nil {
		v, err := slotValue(s[m[2]:m[3]])
		return v, m[0], err
	}
	if m := bareSlot.FindStringSubmatchIndex(s); m != nil {
		v, err := slotValue(s[m[2]:m[3]])
		return v, m[2], err
	}
	return Value{}, -1, nil
}

func slotValue(raw string) (Value, error) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return Value{}, fmt.Errorf("%w: bad slot %q", ErrParseFailure, raw)
	}
	if n == -1 {
		return Value{}, fmt.Errorf("%w: slot -1", ErrAbsent)
	}
	if n < 0 || n >= SlotCount {
		return Value{}, fmt.Errorf("%w: slot %d outside 0..%d", ErrParseFailure, n, SlotCount-1)
	}
	return Value{Shape: SlotIndex, Slot: n}, nil
}

func extractCoordinate(text string) (Value, error) {
	v, at, err := firstCoordinate(text)
	if at >= 0 {
		return v, err
	}
	if absenceIndex(text) >= 0 {
		return Value{}, fmt.Errorf("%w: no coordinate reported", ErrAbsent)
	}
	return Value{}, fmt.Errorf("%w: no coordinate pair in %q", ErrParseFailure, preview(text))
}

// firstCoordinate returns the earliest coordinate pair in s and its offset.
func firstCoordinate(s string) (Value, int, error) {
	var best []int
	for _, re := range []*regexp.Regexp{bracketPair, labeledPair} {
		if m := re.FindStringSubmatchIndex(s); m != nil && (best == nil || m[0] < best[0]) {
			best = m
		}
	}
	if best == nil {
		return Value{}, -1, nil
	}
	v, err := coordinateValue(s[best[2]:best[3]], s[best[4]:best[5]])
	return v, best[0], err
}

func coordinateValue(rawX, rawY string) (Value, error) {
	x, errX := strconv.ParseFloat(rawX, 64)
	y, errY := strconv.ParseFloat(rawY, 64)
	if errX != nil || errY != nil {
		return Value{}, fmt.Errorf("%w: bad coordinate (%s, %s)", ErrParseFailure, rawX, rawY)
	}
	// Fractions like (0.4, 0.7) are normalized coordinates, not pixels.
	if strings.Contains(rawX, ".") && strings.Contains(rawY, ".") &&
		x >= 0 && x <= 1 && y >= 0 && y <= 1 {
		return Value{}, fmt.Errorf("%w: normalized coordinate (%s, %s) is ambiguous", ErrParseFailure, rawX, rawY)
	}
	return Value{Shape: Coordinate, X: int(math.Round(x)), Y: int(math.Round(y))}, nil
}

func extractBoolean(text string) (Value, error) {
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		switch {
		case affirmations[w]:
			return Value{Shape: Boolean, Bool: true}, nil
		case negations[w], strings.HasSuffix(w, "n't"):
			return Value{Shape: Boolean, Bool: false}, nil
		}
	}
	return Value{}, fmt.Errorf("%w: no yes/no verdict in %q", ErrParseFailure, preview(text))
}

func extractFreeText(text string) (Value, error) {
	if text == "" {
		return Value{}, fmt.Errorf("%w: empty answer", ErrParseFailure)
	}
	return Value{Shape: FreeText, Text: text}, nil
}

func preview(s string) string {
	if len(s) > 80 {
		return s[:80] + "..."
	}
	return s
}
