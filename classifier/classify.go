// Copyright (c) 2020 Siemens AG
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY, FITNESS
// FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR
// COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER
// IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN
// CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
//
// Author(s): Jonas Plum

package classifier

import (
	"strings"
)

// Classification is the outcome of applying a RuleSet to one schema.
type Classification struct {
	RuleVersion  string
	ArtifactType ArtifactType
	// TimeColumn is empty when no column qualifies.
	TimeColumn string
	// DescriptionColumns is empty when the description is synthesized.
	DescriptionColumns []string
	JoinDescription    bool
	Composites         []CompositeRule
}

// Synthesized reports whether descriptions are built from all fields.
func (c Classification) Synthesized() bool {
	return len(c.DescriptionColumns) == 0
}

// Classify applies the rule table to an ordered column list. It never fails:
// a missing time column leaves TimeColumn empty, a missing description column
// leads to a synthesized description and an unmatched schema is Unknown.
func (rs *RuleSet) Classify(columns []string) Classification {
	present := make(map[string]bool, len(columns))
	for _, column := range columns {
		present[column] = true
	}
	candidates := rs.candidates(columns)

	c := Classification{
		RuleVersion:  rs.Version,
		ArtifactType: Unknown,
		TimeColumn:   firstMatch(candidates, rs.Time.Keywords),
	}

	typeRule, ok := rs.typeRule(present)
	if ok {
		c.ArtifactType = typeRule.Label
	}

	switch {
	case ok && len(typeRule.Description) > 0:
		for _, column := range typeRule.Description {
			if !present[column] {
				continue
			}
			c.DescriptionColumns = append(c.DescriptionColumns, column)
			if !typeRule.Join {
				break
			}
		}
		c.JoinDescription = typeRule.Join
	default:
		if column := firstMatch(candidates, rs.Description.Keywords); column != "" {
			c.DescriptionColumns = []string{column}
		}
	}

	for _, composite := range rs.Composites {
		if containsAll(present, composite.Members) {
			c.Composites = append(c.Composites, composite)
		}
	}
	return c
}

// IsBookkeeping reports whether column is maintained by the pipeline itself.
func (rs *RuleSet) IsBookkeeping(column string) bool {
	for _, name := range rs.Bookkeeping {
		if name == column {
			return true
		}
	}
	return false
}

// IsComposite reports whether column is produced by a composite rule.
func (rs *RuleSet) IsComposite(column string) bool {
	for _, composite := range rs.Composites {
		if composite.Name == column {
			return true
		}
	}
	return false
}

func (rs *RuleSet) candidates(columns []string) []string {
	var candidates []string
	for _, column := range columns {
		if rs.IsBookkeeping(column) || rs.IsComposite(column) {
			continue
		}
		candidates = append(candidates, column)
	}
	return candidates
}

func (rs *RuleSet) typeRule(present map[string]bool) (TypeRule, bool) {
	for _, rule := range rs.Types {
		if containsAll(present, rule.Requires) {
			return rule, true
		}
	}
	return TypeRule{}, false
}

func firstMatch(columns []string, keywords []string) string {
	for _, column := range columns {
		name := strings.ToLower(column)
		for _, keyword := range keywords {
			if strings.Contains(name, strings.ToLower(keyword)) {
				return column
			}
		}
	}
	return ""
}

func containsAll(present map[string]bool, columns []string) bool {
	for _, column := range columns {
		if !present[column] {
			return false
		}
	}
	return true
}
