package memory_test

import (
	"testing"

	"github.com/mnemohq/mnemo/memory"
)

func TestDetectCategory(t *testing.T) {
	cases := []struct {
		text string
		want memory.Category
	}{
		{"I'd prefer tea and I enjoy hiking", memory.CategoryPreferences},
		{"My name is Anna and I live in Lisbon", memory.CategoryPersonal},
		{"I'm allergic to peanuts and take medication for it", memory.CategoryHealth},
		{"I know how to juggle", memory.CategorySkills},
		{"It is always true that water boils at 100C", memory.CategoryFacts},
		{"The weather was nice today", memory.CategoryGeneral},
		{"", memory.CategoryGeneral},
	}
	for _, tc := range cases {
		if got := memory.DetectCategory(tc.text); got != tc.want {
			t.Errorf("DetectCategory(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestDetectCategory_TieGoesToEarlierRule(t *testing.T) {
	// One preferences hit (like) and one personal hit (job); preferences
	// comes first in the rule table.
	if got := memory.DetectCategory("I like my job"); got != memory.CategoryPreferences {
		t.Fatalf("DetectCategory = %q, want %q", got, memory.CategoryPreferences)
	}
}

func TestDetectCategory_MostHitsWins(t *testing.T) {
	// One preferences hit (like) against two personal hits (name, dog).
	text := "I like it when my dog greets me by name"
	if got := memory.DetectCategory(text); got != memory.CategoryPersonal {
		t.Fatalf("DetectCategory(%q) = %q, want %q", text, got, memory.CategoryPersonal)
	}
}

func TestDetectCategory_CaseInsensitive(t *testing.T) {
	if got := memory.DetectCategory("I AM ALLERGIC TO SHELLFISH"); got != memory.CategoryHealth {
		t.Fatalf("DetectCategory = %q, want %q", got, memory.CategoryHealth)
	}
}
