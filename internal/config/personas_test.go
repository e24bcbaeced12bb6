package config

import (
	"strings"
	"testing"
)

func TestDefaultPersonas(t *testing.T) {
	personas := DefaultPersonas()
	if len(personas) == 0 {
		t.Fatal("expected built-in personas")
	}
	if personas[0].Name != "default" || personas[0].Instruction != "" {
		t.Errorf("first persona should be the empty default, got %+v", personas[0])
	}
	for _, p := range personas {
		if err := ValidatePersona(p); err != nil {
			t.Errorf("built-in persona %q invalid: %v", p.Name, err)
		}
	}
}

func TestMergePersonas(t *testing.T) {
	defaults := []Persona{{Name: "a", Instruction: "one"}, {Name: "b", Instruction: "two"}}
	custom := []Persona{{Name: "b", Instruction: "override"}, {Name: "c", Instruction: "three"}}

	merged := mergePersonas(defaults, custom)
	if len(merged) != 3 {
		t.Fatalf("expected 3 personas, got %d", len(merged))
	}
	if merged[1].Instruction != "override" {
		t.Errorf("custom persona should replace default, got %q", merged[1].Instruction)
	}
	if merged[2].Name != "c" {
		t.Errorf("new persona should be appended, got %q", merged[2].Name)
	}
}

func TestAddAndGetPersona(t *testing.T) {
	setupTestHome(t)

	p := Persona{Name: "terse", Description: "Short answers", Instruction: "Answer in one sentence."}
	if err := AddPersona(p); err != nil {
		t.Fatalf("AddPersona() error: %v", err)
	}
	if err := AddPersona(p); err == nil {
		t.Error("expected duplicate error")
	}

	got, err := GetPersona("terse")
	if err != nil {
		t.Fatalf("GetPersona() error: %v", err)
	}
	if got.Instruction != p.Instruction {
		t.Errorf("Instruction = %q, want %q", got.Instruction, p.Instruction)
	}

	names, err := ListPersonaNames()
	if err != nil {
		t.Fatal(err)
	}
	if names[len(names)-1] != "terse" {
		t.Errorf("expected custom persona last, got %v", names)
	}

	if _, err := GetPersona("missing"); err == nil {
		t.Error("expected error for unknown persona")
	}
}

func TestValidatePersona(t *testing.T) {
	tests := []struct {
		name    string
		persona Persona
		wantErr bool
	}{
		{"valid", Persona{Name: "ok-name_1"}, false},
		{"empty name", Persona{}, true},
		{"bad chars", Persona{Name: "has space"}, true},
		{"long name", Persona{Name: strings.Repeat("a", MaxPersonaNameLength+1)}, true},
		{"long instruction", Persona{Name: "x", Instruction: strings.Repeat("a", MaxInstructionLength+1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePersona(tt.persona)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePersona() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
