package parammapper

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/hashicorp/go-multierror"
)

const accountsYAML = `
skip_paths:
  - /grpc.health.v1.Health/Check
debug: true
controllers:
  - name: application
    rules:
      - from: user
        to: username
  - name: accounts
    parent: application
    rules:
      - from: username
        to: login
        only: [show]
      - from: admin
        to: role
        convert:
          enum:
            - when: ["true"]
              then: ["admin"]
            - when: ["false"]
              then: []
      - from: amount_due
        to: amount_due_in_cents
        convert:
          func: scale
          args: ["100"]
`

func TestLoadConfig_YAML(t *testing.T) {
	config, err := LoadConfig(strings.NewReader(accountsYAML))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if len(config.Controllers) != 2 || !config.Debug {
		t.Fatalf("LoadConfig() = %+v", config)
	}

	m, err := NewMapper(config)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	in := NewParams()
	in.Set("user", "aperson")
	in.Set("admin", "true")
	in.Set("amount_due", "100")

	got, err := m.Apply("accounts", "show", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := map[string]any{
		"login":               "aperson",
		"role":                []any{"admin"},
		"amount_due_in_cents": 10000,
	}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}

	got, err = m.Apply("accounts", "index", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !got.Has("username") || got.Has("login") {
		t.Errorf("only filter ignored on index: %v", got)
	}
}

func TestLoadConfig_JSON(t *testing.T) {
	data := `{"controllers":[{"name":"accounts","rules":[{"from":"username","to":"login","except":["show"]}]}]}`
	config, err := LoadConfig(strings.NewReader(data))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if diff := cmp.Diff([]string{"show"}, config.Controllers[0].Rules[0].Except); diff != "" {
		t.Errorf("except mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	if _, err := LoadConfig(strings.NewReader("controllers: [")); err == nil {
		t.Error("LoadConfig() expected parse error")
	}
}

func TestSaveConfigToFile_RoundTrip(t *testing.T) {
	config := NewConfigBuilder().
		AddController(ControllerConfig{
			Name:  "accounts",
			Rules: []RuleConfig{{From: "username", To: "login", Only: []string{"show"}}},
		}).
		WithSkipPaths([]string{"/health"}).
		WithDebug(true).
		Build()

	for _, format := range []string{"yaml", "json"} {
		t.Run(format, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "rules."+format)
			if err := SaveConfigToFile(config, path, format); err != nil {
				t.Fatalf("SaveConfigToFile() error = %v", err)
			}
			loaded, err := LoadConfigFromFile(path)
			if err != nil {
				t.Fatalf("LoadConfigFromFile() error = %v", err)
			}
			if diff := cmp.Diff(config.Controllers, loaded.Controllers); diff != "" {
				t.Errorf("controllers mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(config.SkipPaths, loaded.SkipPaths); diff != "" {
				t.Errorf("skip paths mismatch (-want +got):\n%s", diff)
			}
		})
	}

	if err := SaveConfigToFile(config, filepath.Join(t.TempDir(), "x"), "toml"); err == nil {
		t.Error("SaveConfigToFile() expected unsupported format error")
	}
}

func TestLoadConfigFromFile_Missing(t *testing.T) {
	if _, err := LoadConfigFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfigFromFile() expected error")
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		config   *Config
		wantErrs int
		wantIs   error
	}{
		{name: "nil config", config: nil, wantErrs: 1},
		{name: "empty config", config: &Config{}},
		{
			name: "valid inheritance declared out of order",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "admin", Parent: "accounts"},
				{Name: "accounts", Rules: []RuleConfig{{From: "a", To: "b"}}},
			}},
		},
		{
			name: "conflicting filters",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "accounts", Rules: []RuleConfig{{From: "a", To: "b", Only: []string{"x"}, Except: []string{"y"}}}},
			}},
			wantErrs: 1,
			wantIs:   ErrConflictingFilters,
		},
		{
			name: "every problem reported",
			config: &Config{Controllers: []ControllerConfig{
				{Name: ""},
				{Name: "accounts", Rules: []RuleConfig{
					{From: "", To: "b"},
					{From: "a", To: "b", Convert: &ConverterConfig{Func: "nope"}},
				}},
				{Name: "accounts"},
				{Name: "orphan", Parent: "missing"},
			}},
			wantErrs: 5,
		},
		{
			name: "inheritance cycle",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "a", Parent: "b"},
				{Name: "b", Parent: "a"},
			}},
			wantErrs: 2,
		},
		{
			name: "self parent",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "a", Parent: "a"},
			}},
			wantErrs: 1,
		},
		{
			name: "empty only list",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "a", Rules: []RuleConfig{{From: "a", To: "b", Only: []string{}}}},
			}},
			wantErrs: 1,
			wantIs:   ErrEmptyFilter,
		},
		{
			name: "converter with enum and func",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "a", Rules: []RuleConfig{{From: "a", To: "b", Convert: &ConverterConfig{
					Func: "int",
					Enum: []EnumCaseConfig{{When: []string{"x"}, Then: 1}},
				}}}},
			}},
			wantErrs: 1,
		},
		{
			name: "bad converter arguments",
			config: &Config{Controllers: []ControllerConfig{
				{Name: "a", Rules: []RuleConfig{{From: "a", To: "b", Convert: &ConverterConfig{Func: "scale", Args: []string{"x"}}}}},
			}},
			wantErrs: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateConfig(tt.config)
			if tt.wantErrs == 0 {
				if err != nil {
					t.Fatalf("ValidateConfig() error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("ValidateConfig() expected error")
			}
			var merr *multierror.Error
			if errors.As(err, &merr) && len(merr.Errors) != tt.wantErrs {
				t.Errorf("ValidateConfig() reported %d errors, want %d: %v", len(merr.Errors), tt.wantErrs, err)
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("ValidateConfig() error = %v, want %v", err, tt.wantIs)
			}
		})
	}
}

func TestConfig_CustomConverter(t *testing.T) {
	config := NewConfigBuilder().
		AddController(ControllerConfig{
			Name: "accounts",
			Rules: []RuleConfig{
				{From: "name", To: "display_name", Convert: &ConverterConfig{Func: "shout"}},
				{From: "tags", To: "labels", Convert: &ConverterConfig{Func: "split", Args: []string{"|"}}},
			},
		}).
		WithConverter("shout", func(args []string) (Converter, error) {
			return Chain(ToUpper, PureFunc(func(v any) any { return v.(string) + "!" })), nil
		}).
		Build()

	m, err := NewMapper(config)
	if err != nil {
		t.Fatalf("NewMapper() error = %v", err)
	}

	in := NewParams()
	in.Set("name", "ann")
	in.Set("tags", "a|b")
	got, err := m.Apply("accounts", "index", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := map[string]any{"display_name": "ANN!", "labels": []string{"a", "b"}}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestDefaultConverters(t *testing.T) {
	for _, name := range []string{"int", "float", "bool", "lower", "upper", "trim", "scale", "split", "default"} {
		if _, ok := DefaultConverters()[name]; !ok {
			t.Errorf("DefaultConverters() missing %q", name)
		}
	}
	if _, err := DefaultConverters()["int"]([]string{"extra"}); err == nil {
		t.Error("int converter should reject arguments")
	}
}
