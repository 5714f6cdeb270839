// Package achievements spots milestone phrases in user messages.
package achievements

import "strings"

// Hit is one detected achievement.
type Hit struct {
	Title       string
	Description string
}

// Rule fires Hit when any trigger occurs in the message.
type Rule struct {
	Triggers []string
	Hit      Hit
}

// DefaultRules is the built-in trigger table.
var DefaultRules = []Rule{
	{
		Triggers: []string{"закінчив", "завершив"},
		Hit:      Hit{Title: "Завершувач", Description: "Довів справу до кінця!"},
	},
	{
		Triggers: []string{"навчився", "вивчив"},
		Hit:      Hit{Title: "Студент життя", Description: "Освоїв щось нове!"},
	},
}

// Detector matches messages against a fixed rule table. It keeps no history,
// so the same phrase sent twice yields the same hits twice.
type Detector struct {
	rules []Rule
}

// NewDetector copies rules with lowercased triggers.
func NewDetector(rules []Rule) *Detector {
	d := &Detector{rules: make([]Rule, 0, len(rules))}
	for _, r := range rules {
		triggers := make([]string, 0, len(r.Triggers))
		for _, t := range r.Triggers {
			if t = strings.ToLower(strings.TrimSpace(t)); t != "" {
				triggers = append(triggers, t)
			}
		}
		d.rules = append(d.rules, Rule{Triggers: triggers, Hit: r.Hit})
	}
	return d
}

// NewDefaultDetector returns a Detector over DefaultRules.
func NewDefaultDetector() *Detector {
	return NewDetector(DefaultRules)
}

// Detect returns every rule that fires, in table order. Each rule fires at
// most once per message.
func (d *Detector) Detect(text string) []Hit {
	lower := strings.ToLower(text)
	var hits []Hit
	for _, r := range d.rules {
		for _, t := range r.Triggers {
			if strings.Contains(lower, t) {
				hits = append(hits, r.Hit)
				break
			}
		}
	}
	return hits
}
