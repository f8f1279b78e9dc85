// internal/parse/parse.go

// Package parse turns the loosely structured text a vision model returns
// into typed decisions. Model output is not guaranteed to be well-formed
// JSON, so parsing proceeds through an ordered cascade of strategies, each
// attempted only when the previous one fails: strict JSON, fenced code
// block, balanced-brace extraction, and finally per-field regex recovery.
package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/marionette/api/schemas"
)

// ExcerptLimit bounds how much raw model output a parse error carries for
// diagnostics.
const ExcerptLimit = 300

// Error is a typed parse failure. It carries the leading slice of the raw
// response so logs show what the model actually said without dumping whole
// transcripts.
type Error struct {
	Reason  string
	Excerpt string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("unparsable model response: %s (excerpt: %q)", e.Reason, e.Excerpt)
}

// NewError builds an Error, truncating the raw text to ExcerptLimit runes.
func NewError(reason, raw string) *Error {
	excerpt := strings.TrimSpace(raw)
	if runes := []rune(excerpt); len(runes) > ExcerptLimit {
		excerpt = string(runes[:ExcerptLimit])
	}
	return &Error{Reason: reason, Excerpt: excerpt}
}

var (
	// fencedBlockRegex extracts the contents of a markdown code block,
	// optionally tagged as json.
	fencedBlockRegex = regexp.MustCompile(fmt.Sprintf("(?s)%s(?:json)?\\s*(.*?)\\s*%s", "```", "```"))

	// Per-field recovery patterns. Field names for quoted string values
	// must themselves be quote-delimited to avoid matching prose; the
	// boolean, enum and point fields tolerate bare keys.
	completeRegex   = regexp.MustCompile(`["']?complete["']?\s*[:=]\s*(?i:(true|false))`)
	actionTypeRegex = regexp.MustCompile(`["']?action_type["']?\s*[:=]\s*["']?(click|type|press_key)`)
	actionRegex     = regexp.MustCompile(`["']action["']\s*[:=]\s*["'](.*?)["']\s*(?:[,}\n]|$)`)
	textRegex       = regexp.MustCompile(`["']text["']\s*[:=]\s*["'](.*?)["']\s*(?:[,}\n]|$)`)
	keyRegex        = regexp.MustCompile(`["']key["']\s*[:=]\s*["'](.*?)["']\s*(?:[,}\n]|$)`)
	pointRegex      = regexp.MustCompile(`["']?point["']?\s*[:=]\s*\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]`)

	// barePairRegex matches any bracketed two-number list. Used only by the
	// point-only lookup as the very last resort.
	barePairRegex = regexp.MustCompile(`\[\s*(-?\d+(?:\.\d+)?)\s*,\s*(-?\d+(?:\.\d+)?)\s*\]`)
)

// Parser recovers structured decisions from raw model text.
type Parser struct {
	logger *zap.Logger
}

// NewParser creates a parser.
func NewParser(logger *zap.Logger) *Parser {
	return &Parser{logger: logger.Named("parser")}
}

// Decision extracts a full planning decision from the raw response. It
// fails with *Error when no usable structure can be recovered.
func (p *Parser) Decision(raw string) (schemas.Decision, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return schemas.Decision{}, NewError("empty response", raw)
	}

	// 1. Strict parse of the whole trimmed text.
	if d, ok := p.strictDecision(trimmed); ok {
		return p.finish(d), nil
	}

	// 2. Contents of a fenced code block.
	if block, ok := fencedBlock(trimmed); ok {
		if d, ok := p.strictDecision(block); ok {
			p.logger.Debug("Decision recovered from fenced block")
			return p.finish(d), nil
		}
	}

	// 3. First balanced brace-delimited substring.
	if candidate, ok := balancedBraces(trimmed); ok {
		if d, ok := p.strictDecision(candidate); ok {
			p.logger.Debug("Decision recovered from embedded JSON object")
			return p.finish(d), nil
		}
	}

	// 4. Normalize single quotes, retry the structured strategies, then
	// fall back to recovering fields one by one.
	if normalized := strings.ReplaceAll(trimmed, "'", `"`); normalized != trimmed {
		if d, ok := p.strictDecision(normalized); ok {
			p.logger.Debug("Decision recovered after quote normalization")
			return p.finish(d), nil
		}
		if candidate, ok := balancedBraces(normalized); ok {
			if d, ok := p.strictDecision(candidate); ok {
				p.logger.Debug("Decision recovered after quote normalization")
				return p.finish(d), nil
			}
		}
	}
	if d, ok := p.regexDecision(trimmed); ok {
		p.logger.Debug("Decision recovered field by field")
		return p.finish(d), nil
	}

	p.logger.Warn("Failed to parse model response", zap.String("raw_response", clip(raw)))
	return schemas.Decision{}, NewError("no decision fields recovered", raw)
}

// Point extracts a single [y, x] coordinate pair from the raw response of
// an element-lookup call. Unlike Decision it additionally accepts a bare
// bracketed number pair anywhere in the text, provided both values already
// lie on the 0-1000 grid.
func (p *Parser) Point(raw string) (schemas.NormalizedPoint, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return schemas.NormalizedPoint{}, NewError("empty response", raw)
	}

	candidates := []string{trimmed}
	if block, ok := fencedBlock(trimmed); ok {
		candidates = append(candidates, block)
	}
	if candidate, ok := balancedBraces(trimmed); ok {
		candidates = append(candidates, candidate)
	}
	if normalized := strings.ReplaceAll(trimmed, "'", `"`); normalized != trimmed {
		candidates = append(candidates, normalized)
		if candidate, ok := balancedBraces(normalized); ok {
			candidates = append(candidates, candidate)
		}
	}

	for _, candidate := range candidates {
		var payload struct {
			Point *schemas.NormalizedPoint `json:"point"`
		}
		if err := json.Unmarshal([]byte(candidate), &payload); err != nil || payload.Point == nil {
			continue
		}
		return p.checkRange(*payload.Point, raw)
	}

	if m := pointRegex.FindStringSubmatch(trimmed); m != nil {
		return p.checkRange(schemas.NormalizedPoint{Y: atof(m[1]), X: atof(m[2])}, raw)
	}

	// Last resort: any bracketed pair whose values are already on the grid.
	for _, m := range barePairRegex.FindAllStringSubmatch(trimmed, -1) {
		pt := schemas.NormalizedPoint{Y: atof(m[1]), X: atof(m[2])}
		if pt.InRange() {
			p.logger.Debug("Point recovered from bare coordinate pair",
				zap.Float64("y", pt.Y), zap.Float64("x", pt.X))
			return pt, nil
		}
	}

	p.logger.Warn("Failed to parse point response", zap.String("raw_response", clip(raw)))
	return schemas.NormalizedPoint{}, NewError("no coordinate pair found", raw)
}

// checkRange enforces the 0-1000 grid for point-only lookups. Out-of-range
// values fail so the detection caller can retry with a fresh model call.
func (p *Parser) checkRange(pt schemas.NormalizedPoint, raw string) (schemas.NormalizedPoint, error) {
	if !pt.InRange() {
		p.logger.Warn("Model returned point outside normalized grid",
			zap.Float64("y", pt.Y), zap.Float64("x", pt.X))
		return schemas.NormalizedPoint{}, NewError(
			fmt.Sprintf("point [%g, %g] outside the 0-1000 grid", pt.Y, pt.X), raw)
	}
	return pt, nil
}

// strictDecision attempts a strict JSON parse and reports whether the
// result carries at least one usable field.
func (p *Parser) strictDecision(text string) (schemas.Decision, bool) {
	var d schemas.Decision
	if err := json.Unmarshal([]byte(text), &d); err != nil {
		return schemas.Decision{}, false
	}
	return d, usable(d)
}

// regexDecision recovers decision fields one by one. It succeeds when at
// least one recognized field is present.
func (p *Parser) regexDecision(text string) (schemas.Decision, bool) {
	var d schemas.Decision
	found := false

	if m := completeRegex.FindStringSubmatch(text); m != nil {
		d.Complete = strings.EqualFold(m[1], "true")
		found = true
	}
	if m := actionTypeRegex.FindStringSubmatch(text); m != nil {
		d.Kind = schemas.ActionKind(m[1])
		found = true
	}
	if m := actionRegex.FindStringSubmatch(text); m != nil {
		d.Description = m[1]
		found = true
	}
	if m := textRegex.FindStringSubmatch(text); m != nil {
		d.Text = m[1]
		found = true
	}
	if m := keyRegex.FindStringSubmatch(text); m != nil {
		d.Key = m[1]
		found = true
	}
	if m := pointRegex.FindStringSubmatch(text); m != nil {
		d.Point = &schemas.NormalizedPoint{Y: atof(m[1]), X: atof(m[2])}
		found = true
	}

	return d, found
}

// finish applies the invariants every successful strategy shares: points
// are validated against the 0-1000 grid (out-of-range values are dropped
// with a warning so callers fall back to detection by description), and a
// missing action kind is inferred from the populated payload fields.
func (p *Parser) finish(d schemas.Decision) schemas.Decision {
	if d.Point != nil && !d.Point.InRange() {
		p.logger.Warn("Dropping point outside normalized grid",
			zap.Float64("y", d.Point.Y), zap.Float64("x", d.Point.X))
		d.Point = nil
	}
	if !d.Complete && d.Kind == "" {
		switch {
		case d.Text != "":
			d.Kind = schemas.ActionTypeText
		case d.Key != "":
			d.Kind = schemas.ActionPressKey
		default:
			d.Kind = schemas.ActionClick
		}
	}
	return d
}

// usable reports whether the decision carries anything the loop can act on.
// A structurally valid but empty object is treated as a parse miss so the
// cascade keeps looking.
func usable(d schemas.Decision) bool {
	return d.Complete || d.Kind != "" || d.Description != "" ||
		d.Point != nil || d.Text != "" || d.Key != ""
}

// fencedBlock returns the contents of the first markdown code block.
func fencedBlock(text string) (string, bool) {
	matches := fencedBlockRegex.FindStringSubmatch(text)
	if len(matches) < 2 {
		return "", false
	}
	block := strings.TrimSpace(matches[1])
	return block, block != ""
}

// balancedBraces returns the first brace-delimited substring with matching
// nesting depth, skipping braces inside double-quoted strings.
func balancedBraces(s string) (string, bool) {
	start := strings.Index(s, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func atof(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func clip(raw string) string {
	if runes := []rune(raw); len(runes) > ExcerptLimit {
		return string(runes[:ExcerptLimit])
	}
	return raw
}
