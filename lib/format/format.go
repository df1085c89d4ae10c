/*
package format expands the two small languages advect's config files use to
name snapshot files:

	SnapshotFormat = fields/step{%03d,step}/block.{%d,0..7}.grid
	Steps = 0..100 - 63

A file format is fixed text with {verb,rule} variables. The verb is an
integer printf verb. The rule is either "step", which prints the current
step, or a sequence.

A sequence is a list of numbers (7) and inclusive ranges (0..100) joined by
"+" and "-". Terms are applied left to right: "+" adds numbers and "-"
removes numbers that were added earlier. A leading "+" may be left out.
Spaces are ignored.
*/
package format

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	// BigNumber bounds the length of an expanded sequence. Anything longer
	// is assumed to be a typo.
	BigNumber = 1 << 20
	// StepRule is the rule for variables that follow the current step.
	StepRule = "step"
)

// term is one signed number or range in a sequence.
type term struct {
	add    bool
	lo, hi int
}

// parseSequence splits a sequence into terms.
func parseSequence(seq string) ([]term, error) {
	spaced := strings.NewReplacer("+", " + ", "-", " - ").Replace(seq)
	fields := strings.Fields(spaced)
	if len(fields) == 0 {
		return nil, fmt.Errorf("the sequence is empty")
	}

	terms := []term{}
	add, needTerm := true, true
	for i, f := range fields {
		if f == "+" || f == "-" {
			if needTerm && i > 0 {
				return nil, fmt.Errorf("'%s' at element %d follows another "+
					"operator", f, i+1)
			}
			add, needTerm = f == "+", true
			continue
		}
		if !needTerm {
			return nil, fmt.Errorf("element %d, '%s', isn't preceded by "+
				"'+' or '-'", i+1, f)
		}
		lo, hi, err := parseRange(f)
		if err != nil {
			return nil, fmt.Errorf("element %d, '%s': %w", i+1, f, err)
		}
		terms = append(terms, term{add, lo, hi})
		needTerm = false
	}
	if needTerm {
		return nil, fmt.Errorf("the sequence ends in an operator")
	}
	return terms, nil
}

// parseRange parses "n" or "lo..hi".
func parseRange(s string) (lo, hi int, err error) {
	a, b, isRange := strings.Cut(s, "..")
	if lo, err = strconv.Atoi(a); err != nil {
		return 0, 0, fmt.Errorf("'%s' is not an integer", a)
	}
	if !isRange {
		return lo, lo, nil
	}
	if hi, err = strconv.Atoi(b); err != nil {
		return 0, 0, fmt.Errorf("'%s' is not an integer", b)
	}
	if hi < lo {
		return 0, 0, fmt.Errorf("range %d..%d is backwards", lo, hi)
	}
	return lo, hi, nil
}

// ExpandSequenceFormat returns the sorted numbers in a sequence.
func ExpandSequenceFormat(seq string) ([]int, error) {
	terms, err := parseSequence(seq)
	if err != nil {
		return nil, err
	}

	set := map[int]bool{}
	for _, tm := range terms {
		if tm.add && len(set)+(tm.hi-tm.lo+1) > BigNumber {
			return nil, fmt.Errorf("the sequence has more than %d numbers",
				BigNumber)
		}
		for n := tm.lo; n <= tm.hi; n++ {
			switch {
			case tm.add && set[n]:
				return nil, fmt.Errorf("%d is added twice", n)
			case !tm.add && !set[n]:
				return nil, fmt.Errorf("%d is removed without being added", n)
			}
			if tm.add {
				set[n] = true
			} else {
				delete(set, n)
			}
		}
	}

	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out, nil
}

// ExpandStepFormat expands the Steps config variable.
func ExpandStepFormat(seq string) ([]int, error) {
	steps, err := ExpandSequenceFormat(seq)
	if err != nil {
		return nil, fmt.Errorf("invalid Steps value '%s': %w", seq, err)
	}
	return steps, nil
}

// FileFormat is a parsed file format string.
type FileFormat struct {
	Format string
	// Separators holds the fixed text around the variables. It always has
	// one more element than Vars.
	Separators []string
	Vars       []Variable
}

// Variable is a single {verb,rule} variable in a file format.
type Variable struct {
	Verb, Rule string
	// Values is the expanded sequence for non-step rules.
	Values []int
}

// ParseFileFormat parses and checks a file format string.
func ParseFileFormat(format string) (*FileFormat, error) {
	ff := &FileFormat{Format: format}
	rest := format
	for {
		open := strings.IndexAny(rest, "{}")
		if open < 0 {
			ff.Separators = append(ff.Separators, rest)
			return ff, nil
		}
		if rest[open] == '}' {
			return nil, fmt.Errorf("file format '%s' has a '}' without "+
				"a '{'", format)
		}
		end := strings.IndexAny(rest[open+1:], "{}")
		if end < 0 || rest[open+1+end] == '{' {
			return nil, fmt.Errorf("file format '%s' has a '{' without "+
				"a matching '}'", format)
		}
		end += open + 1

		v, err := parseVariable(rest[open+1 : end])
		if err != nil {
			return nil, fmt.Errorf("file format '%s': %w", format, err)
		}
		ff.Separators = append(ff.Separators, rest[:open])
		ff.Vars = append(ff.Vars, v)
		rest = rest[end+1:]
	}
}

// parseVariable parses the inside of a {verb,rule} variable.
func parseVariable(s string) (Variable, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return Variable{}, fmt.Errorf("variable '{%s}' should look like "+
			"{%%03d,step} or {%%d,0..7}", s)
	}
	verb, rule := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	if !strings.HasPrefix(verb, "%") || !strings.HasSuffix(verb, "d") {
		return Variable{}, fmt.Errorf("'%s' in '{%s}' is not an integer "+
			"verb", verb, s)
	}

	if rule == StepRule {
		return Variable{Verb: verb, Rule: rule}, nil
	}
	vals, err := ExpandSequenceFormat(rule)
	if err != nil {
		return Variable{}, fmt.Errorf("rule '%s' in '{%s}' is neither '%s' "+
			"nor a sequence: %w", rule, s, StepRule, err)
	}
	return Variable{Verb: verb, Rule: rule, Values: vals}, nil
}

// Expand returns every file name the format refers to at the given step.
// The rightmost sequence variable varies fastest.
func (ff *FileFormat) Expand(step int) []string {
	names := []string{ff.Separators[0]}
	for i, v := range ff.Vars {
		vals := v.Values
		if v.Rule == StepRule {
			vals = []int{step}
		}

		next := make([]string, 0, len(names)*len(vals))
		for _, prefix := range names {
			for _, x := range vals {
				next = append(next, prefix+fmt.Sprintf(v.Verb, x)+
					ff.Separators[i+1])
			}
		}
		names = next
	}
	return names
}
