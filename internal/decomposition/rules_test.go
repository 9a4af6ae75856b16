package decomposition

import "testing"

func TestDefaultRules_OrderedDescendingByPriority(t *testing.T) {
	ordered := orderedByPriority(DefaultRules())
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Priority > ordered[i-1].Priority {
			t.Fatalf("rule at %d has priority %d > preceding %d", i, ordered[i].Priority, ordered[i-1].Priority)
		}
	}
}

func TestMatchRules_SecurityOutranksCRUDOnSameText(t *testing.T) {
	matched := MatchRules(DefaultRules(), "implement authentication for the user database model")
	if len(matched) < 2 {
		t.Fatalf("MatchRules() = %v, want at least 2 matches", matched)
	}
	if matched[0].Strategy != StrategySecurity {
		t.Fatalf("matched[0].Strategy = %v, want StrategySecurity (priority 6)", matched[0].Strategy)
	}
}

func TestMatchRules_NoMatchReturnsEmpty(t *testing.T) {
	matched := MatchRules(DefaultRules(), "write the onboarding documentation")
	if len(matched) != 0 {
		t.Fatalf("MatchRules() = %v, want empty", matched)
	}
}

func TestParamOverrides_ReadsKnownKeysAndIgnoresExtras(t *testing.T) {
	raw := []byte(`{"service_count": 5, "entities": ["create", "read"], "unrelated_field": {"nested": true}}`)
	overrides := ParamOverrides(raw)
	if overrides["service_count"] != 5 {
		t.Fatalf("service_count = %v, want 5", overrides["service_count"])
	}
	entities, ok := overrides["entities"].([]string)
	if !ok || len(entities) != 2 || entities[0] != "create" {
		t.Fatalf("entities = %v, want [create read]", overrides["entities"])
	}
	if _, ok := overrides["unrelated_field"]; ok {
		t.Fatal("unrelated_field should not appear in overrides")
	}
}

func TestParamOverrides_InvalidJSONReturnsNil(t *testing.T) {
	if overrides := ParamOverrides([]byte(`not json`)); overrides != nil {
		t.Fatalf("ParamOverrides() = %v, want nil for invalid JSON", overrides)
	}
	if overrides := ParamOverrides(nil); overrides != nil {
		t.Fatalf("ParamOverrides(nil) = %v, want nil", overrides)
	}
}

func TestMergeParams_OverridesWinWithoutMutatingBase(t *testing.T) {
	base := map[string]interface{}{"service_count": 3, "shared_components": []string{"auth"}}
	merged := mergeParams(base, map[string]interface{}{"service_count": 7})

	if merged["service_count"] != 7 {
		t.Fatalf("merged service_count = %v, want 7", merged["service_count"])
	}
	if base["service_count"] != 3 {
		t.Fatalf("base service_count mutated: %v", base["service_count"])
	}
}

func TestMatchRules_MicroservicePattern(t *testing.T) {
	matched := MatchRules(DefaultRules(), "implement a distributed microservice architecture")
	if len(matched) != 1 || matched[0].Strategy != StrategyMicroservice {
		t.Fatalf("MatchRules() = %v, want [StrategyMicroservice]", matched)
	}
}
