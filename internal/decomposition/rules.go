package decomposition

import (
	"regexp"

	"github.com/tidwall/gjson"
)

// Strategy names the decomposition routine a matching Rule triggers.
type Strategy string

const (
	StrategyMicroservice Strategy = "microservice_pattern"
	StrategyCRUD         Strategy = "crud_pattern"
	StrategyUIComponents Strategy = "ui_components"
	StrategySecurity     Strategy = "security_pattern"
	StrategyDefault      Strategy = "default"
)

// Rule matches a task's combined title+description text against a regex
// and, when matched, selects a named expansion strategy. Rules are
// evaluated in descending Priority order; every matching rule applies.
type Rule struct {
	Pattern  *regexp.Regexp
	Strategy Strategy
	Params   map[string]interface{}
	Priority int
}

// DefaultRules returns the built-in rule set in declaration order;
// MatchRules orders matches by descending priority, so the
// highest-priority match is applied first.
func DefaultRules() []Rule {
	return []Rule{
		{
			Pattern:  regexp.MustCompile(`(?i).*(microservice|distributed).*`),
			Strategy: StrategyMicroservice,
			Params: map[string]interface{}{
				"service_count":     3,
				"shared_components": []string{"auth", "database", "api_gateway"},
			},
			Priority: 5,
		},
		{
			Pattern:  regexp.MustCompile(`(?i).*(CRUD|database|model).*`),
			Strategy: StrategyCRUD,
			Params: map[string]interface{}{
				"entities":      []string{"create", "read", "update", "delete"},
				"include_tests": true,
			},
			Priority: 4,
		},
		{
			Pattern:  regexp.MustCompile(`(?i).*(UI|frontend|interface).*`),
			Strategy: StrategyUIComponents,
			Params: map[string]interface{}{
				"components": []string{"layout", "navigation", "forms", "tables", "charts"},
			},
			Priority: 4,
		},
		{
			Pattern:  regexp.MustCompile(`(?i).*(auth|authentication|security).*`),
			Strategy: StrategySecurity,
			Params: map[string]interface{}{
				"phases":         []string{"design", "implementation", "testing", "audit"},
				"security_level": "high",
			},
			Priority: 6,
		},
	}
}

// MatchRules returns every rule whose pattern matches text, in descending
// priority order.
func MatchRules(rules []Rule, text string) []Rule {
	var matched []Rule
	for _, r := range orderedByPriority(rules) {
		if r.Pattern.MatchString(text) {
			matched = append(matched, r)
		}
	}
	return matched
}

// paramOverrideKeys are the rule-param fields a caller may override via
// loose JSON, covering every key the decomposeX strategies read.
var paramOverrideKeys = []string{
	"service_count", "shared_components", "entities", "include_tests",
	"components", "phases", "security_level",
}

// ParamOverrides reads a caller-supplied JSON blob with github.com/tidwall/gjson
// rather than strict unmarshaling into map[string]interface{}, so a
// tenant-supplied override document carrying unrelated or malformed
// extra fields never fails the whole read: only paramOverrideKeys are
// looked up, each independently. Keys absent from raw, null, or holding a
// JSON object are omitted from the result; any other value is kept as its
// JSON type (bool, int, string, or []string) whichever key it sits under,
// and a strategy reading a key of an unexpected type uses its default.
func ParamOverrides(raw []byte) map[string]interface{} {
	if len(raw) == 0 || !gjson.ValidBytes(raw) {
		return nil
	}
	overrides := map[string]interface{}{}
	for _, key := range paramOverrideKeys {
		result := gjson.GetBytes(raw, key)
		if !result.Exists() {
			continue
		}
		switch result.Type {
		case gjson.True, gjson.False:
			overrides[key] = result.Bool()
		case gjson.Number:
			overrides[key] = int(result.Int())
		case gjson.String:
			overrides[key] = result.String()
		case gjson.JSON:
			if result.IsArray() {
				var items []string
				for _, v := range result.Array() {
					items = append(items, v.String())
				}
				overrides[key] = items
			}
		}
	}
	if len(overrides) == 0 {
		return nil
	}
	return overrides
}

// mergeParams overlays overrides onto base, returning a new map so the
// rule's own default Params are never mutated.
func mergeParams(base, overrides map[string]interface{}) map[string]interface{} {
	if len(overrides) == 0 {
		return base
	}
	merged := make(map[string]interface{}, len(base)+len(overrides))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overrides {
		merged[k] = v
	}
	return merged
}

func orderedByPriority(rules []Rule) []Rule {
	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	for i := 1; i < len(ordered); i++ {
		for j := i; j > 0 && ordered[j].Priority > ordered[j-1].Priority; j-- {
			ordered[j], ordered[j-1] = ordered[j-1], ordered[j]
		}
	}
	return ordered
}
