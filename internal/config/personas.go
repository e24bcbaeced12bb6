package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Persona is a named instruction preset. Selecting one sends its
// Instruction to the server's /instruct endpoint before chatting.
type Persona struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Instruction string `json:"instruction"`
}

// PersonaConfig is the on-disk layout of personas.json
type PersonaConfig struct {
	Personas       []Persona `json:"personas"`
	DefaultPersona string    `json:"default_persona,omitempty"`
}

const (
	MaxPersonaNameLength   = 50
	MaxInstructionLength   = 32 * 1024
	defaultPersonaName     = "default"
	personasConfigFileName = "personas.json"
)

// DefaultPersonas returns the built-in presets
func DefaultPersonas() []Persona {
	return []Persona{
		{
			Name:        defaultPersonaName,
			Description: "No instruction",
		},
		{
			Name:        "coder",
			Description: "Programming assistant",
			Instruction: `You are an expert programmer. Answer with working code first,
then a short explanation. Prefer standard tooling and point out edge cases.`,
		},
		{
			Name:        "reviewer",
			Description: "Careful code reviewer",
			Instruction: `You review code. List concrete problems ordered by severity,
quote the offending lines, and suggest a minimal fix for each.`,
		},
		{
			Name:        "tutor",
			Description: "Patient explainer",
			Instruction: `You are a patient tutor. Break topics into small steps,
use examples, and check understanding before moving on.`,
		},
	}
}

// GetPersonasPath returns the path to personas.json
func GetPersonasPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, personasConfigFileName), nil
}

// LoadPersonas loads user personas merged over the built-in ones
func LoadPersonas() (*PersonaConfig, error) {
	path, err := GetPersonasPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &PersonaConfig{
				Personas:       DefaultPersonas(),
				DefaultPersona: defaultPersonaName,
			}, nil
		}
		return nil, fmt.Errorf("failed to read personas: %w", err)
	}

	var pc PersonaConfig
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("failed to parse personas: %w", err)
	}
	pc.Personas = mergePersonas(DefaultPersonas(), pc.Personas)

	return &pc, nil
}

// SavePersonas writes personas.json
func SavePersonas(pc *PersonaConfig) error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(pc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal personas: %w", err)
	}

	return os.WriteFile(filepath.Join(configDir, personasConfigFileName), data, 0o600)
}

// GetPersona looks a persona up by name
func GetPersona(name string) (*Persona, error) {
	pc, err := LoadPersonas()
	if err != nil {
		return nil, err
	}

	for _, p := range pc.Personas {
		if p.Name == name {
			return &p, nil
		}
	}

	return nil, fmt.Errorf("persona '%s' not found", name)
}

// ListPersonaNames returns the names of all known personas
func ListPersonaNames() ([]string, error) {
	pc, err := LoadPersonas()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(pc.Personas))
	for i, p := range pc.Personas {
		names[i] = p.Name
	}
	return names, nil
}

// AddPersona validates and stores a new persona
func AddPersona(p Persona) error {
	if err := ValidatePersona(p); err != nil {
		return err
	}

	pc, err := LoadPersonas()
	if err != nil {
		return err
	}

	for _, existing := range pc.Personas {
		if existing.Name == p.Name {
			return fmt.Errorf("persona '%s' already exists", p.Name)
		}
	}

	pc.Personas = append(pc.Personas, p)
	return SavePersonas(pc)
}

// mergePersonas overlays custom personas on defaults by name
func mergePersonas(defaults, custom []Persona) []Persona {
	result := make([]Persona, len(defaults))
	copy(result, defaults)

	for _, cp := range custom {
		found := false
		for i, dp := range result {
			if dp.Name == cp.Name {
				result[i] = cp
				found = true
				break
			}
		}
		if !found {
			result = append(result, cp)
		}
	}

	return result
}

// ValidatePersona checks name and instruction limits
func ValidatePersona(p Persona) error {
	if p.Name == "" {
		return fmt.Errorf("validation failed: name is required")
	}
	if len(p.Name) > MaxPersonaNameLength {
		return fmt.Errorf("validation failed: name too long (max %d characters)", MaxPersonaNameLength)
	}
	for _, c := range p.Name {
		if !((c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' || c == '-') {
			return fmt.Errorf("validation failed: name must contain only alphanumeric characters, underscores, and hyphens")
		}
	}
	if len(p.Instruction) > MaxInstructionLength {
		return fmt.Errorf("validation failed: instruction too long (max %d characters)", MaxInstructionLength)
	}
	return nil
}
