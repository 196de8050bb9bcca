package parammapper

import (
	"errors"
	"strconv"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func requestParams(action string, extra map[string]any) Params {
	p := NewParams()
	p.Set("controller", "anonymous")
	p.Set("action", action)
	for k, v := range extra {
		p.Set(k, v)
	}
	return p
}

func mustPipeline(t *testing.T, rules ...Rule) *Pipeline {
	t.Helper()
	c := NewController("anonymous", nil)
	c.Register(rules...)
	return NewPipeline(c)
}

func TestPipeline_Apply(t *testing.T) {
	amountToCents := Func(func(v any) (any, error) {
		n, err := strconv.Atoi(StringSlice(v)[0])
		if err != nil {
			return nil, err
		}
		return n * 100, nil
	})

	tests := []struct {
		name   string
		rule   Rule
		action string
		params map[string]any
		want   map[string]any
	}{
		{
			name:   "plain rename",
			rule:   MustRule("username", "login"),
			action: "index",
			params: map[string]any{"username": "aperson"},
			want:   map[string]any{"login": "aperson"},
		},
		{
			name:   "param not sent",
			rule:   MustRule("username", "login"),
			action: "index",
			want:   map[string]any{},
		},
		{
			name: "enum converter",
			rule: MustRule("admin", "role", Convert(Enum(
				When("true").Then([]string{"admin"}),
				When("false").Then([]string{}),
			))),
			action: "index",
			params: map[string]any{"admin": "true"},
			want:   map[string]any{"role": []string{"admin"}},
		},
		{
			name:   "enum converter without param",
			rule:   MustRule("admin", "role", Convert(Enum(When("true").Then([]string{"admin"})))),
			action: "index",
			want:   map[string]any{},
		},
		{
			name:   "enum miss passes value through",
			rule:   MustRule("admin", "role", Convert(Enum(When("true").Then([]string{"admin"})))),
			action: "index",
			params: map[string]any{"admin": "maybe"},
			want:   map[string]any{"role": "maybe"},
		},
		{
			name:   "function converter",
			rule:   MustRule("amount_due", "amount_due_in_cents", Convert(amountToCents)),
			action: "index",
			params: map[string]any{"amount_due": 100},
			want:   map[string]any{"amount_due_in_cents": 10000},
		},
		{
			name:   "only matching action",
			rule:   MustRule("username", "login", Only("show")),
			action: "show",
			params: map[string]any{"username": "aperson"},
			want:   map[string]any{"login": "aperson"},
		},
		{
			name:   "only other action",
			rule:   MustRule("username", "login", Only("show")),
			action: "index",
			params: map[string]any{"username": "aperson"},
			want:   map[string]any{"username": "aperson"},
		},
		{
			name:   "except excluded action",
			rule:   MustRule("username", "login", Except("show")),
			action: "show",
			params: map[string]any{"username": "aperson"},
			want:   map[string]any{"username": "aperson"},
		},
		{
			name:   "except other action",
			rule:   MustRule("username", "login", Except("show")),
			action: "index",
			params: map[string]any{"username": "aperson"},
			want:   map[string]any{"login": "aperson"},
		},
		{
			name:   "same source and destination converts in place",
			rule:   MustRule("page", "page", Convert(ParseInt)),
			action: "index",
			params: map[string]any{"page": "3"},
			want:   map[string]any{"page": 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPipeline(t, tt.rule)
			in := requestParams(tt.action, tt.params)

			got, err := p.Apply(tt.action, in)
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}

			want := requestParams(tt.action, tt.want).Map()
			if diff := cmp.Diff(want, got.Map()); diff != "" {
				t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPipeline_ApplyDoesNotMutateInput(t *testing.T) {
	p := mustPipeline(t, MustRule("username", "login"))
	in := NewParams()
	in.Set("username", "aperson")

	if _, err := p.Apply("index", in); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if v, _ := in.Get("username"); v != "aperson" || in.Has("login") {
		t.Errorf("input mutated: %v", in)
	}
}

func TestPipeline_Idempotent(t *testing.T) {
	p := mustPipeline(t,
		MustRule("username", "login"),
		MustRule("admin", "role", Convert(Enum(When("true").Then("admin")))),
	)
	in := requestParams("index", map[string]any{"username": "aperson", "admin": "true"})

	once, err := p.Apply("index", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	twice, err := p.Apply("index", once)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !once.Equal(twice) {
		t.Errorf("second pass changed params: %v -> %v", once, twice)
	}
}

func TestPipeline_RuleOrdering(t *testing.T) {
	t.Run("chain follows renamed key", func(t *testing.T) {
		p := mustPipeline(t,
			MustRule("user", "username"),
			MustRule("username", "login"),
		)
		in := NewParams()
		in.Set("user", "aperson")

		got, err := p.Apply("index", in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if diff := cmp.Diff(map[string]any{"login": "aperson"}, got.Map()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("second rule on same source is skipped", func(t *testing.T) {
		p := mustPipeline(t,
			MustRule("username", "login"),
			MustRule("username", "handle"),
		)
		in := NewParams()
		in.Set("username", "aperson")

		got, err := p.Apply("index", in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if diff := cmp.Diff(map[string]any{"login": "aperson"}, got.Map()); diff != "" {
			t.Errorf("mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("untouched keys keep their order", func(t *testing.T) {
		p := mustPipeline(t, MustRule("b", "z"))
		in := NewParams()
		in.Set("a", 1)
		in.Set("b", 2)
		in.Set("c", 3)

		got, err := p.Apply("index", in)
		if err != nil {
			t.Fatalf("Apply() error = %v", err)
		}
		if diff := cmp.Diff([]string{"a", "c", "z"}, got.Keys()); diff != "" {
			t.Errorf("keys mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestPipeline_ConversionError(t *testing.T) {
	p := mustPipeline(t, MustRule("amount", "cents", Convert(ScaleInt(100))))
	in := NewParams()
	in.Set("amount", "ten")

	_, err := p.Apply("create", in)
	if err == nil {
		t.Fatal("Apply() expected error")
	}

	var convErr *ConversionError
	if !errors.As(err, &convErr) {
		t.Fatalf("Apply() error = %T, want *ConversionError", err)
	}
	if convErr.Source != "amount" || convErr.Destination != "cents" || convErr.Action != "create" {
		t.Errorf("ConversionError = %+v", convErr)
	}
	if convErr.Unwrap() == nil {
		t.Error("ConversionError should wrap the converter error")
	}
}

func TestPipeline_UnknownAction(t *testing.T) {
	p := mustPipeline(t,
		MustRule("a", "only_a", Only("show")),
		MustRule("b", "except_b", Except("show")),
		MustRule("c", "always_c"),
	)
	in := NewParams()
	in.Set("a", 1)
	in.Set("b", 2)
	in.Set("c", 3)

	got, err := p.Apply("", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	want := map[string]any{"a": 1, "b": 2, "always_c": 3}
	if diff := cmp.Diff(want, got.Map()); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestController_EffectiveRules(t *testing.T) {
	base := NewController("application", nil)
	base.Register(MustRule("user", "username"))

	accounts := NewController("accounts", base)
	if err := accounts.Rename("username", "login"); err != nil {
		t.Fatalf("Rename() error = %v", err)
	}
	accounts.Register(MustRule("user", "owner"))

	admin := NewController("admin_accounts", accounts)
	admin.Register(MustRule("login", "admin_login", Only("update")))

	var got []string
	for _, r := range admin.EffectiveRules() {
		got = append(got, r.Source()+"->"+r.Destination())
	}
	want := []string{"user->username", "username->login", "user->owner", "login->admin_login"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("EffectiveRules() mismatch (-want +got):\n%s", diff)
	}

	if len(base.EffectiveRules()) != 1 {
		t.Errorf("base should only see its own rules, got %d", len(base.EffectiveRules()))
	}

	in := NewParams()
	in.Set("user", "aperson")
	out, err := NewPipeline(admin).Apply("update", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if diff := cmp.Diff(map[string]any{"admin_login": "aperson"}, out.Map()); diff != "" {
		t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewPipeline_NilController(t *testing.T) {
	in := NewParams()
	in.Set("username", "aperson")

	got, err := NewPipeline(nil).Apply("index", in)
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if !got.Equal(in) {
		t.Errorf("Apply() = %v, want %v", got, in)
	}
}

func TestPipeline_ConcurrentApply(t *testing.T) {
	p := mustPipeline(t,
		MustRule("username", "login"),
		MustRule("admin", "role", Convert(Enum(When("true").Then([]string{"admin"})))),
		MustRule("amount_due", "amount_due_in_cents", Convert(ScaleInt(100)), Only("update")),
	)
	m := NewBuilder().
		Controller("accounts").
		Rename("username", "login").
		Rename("amount_due", "amount_due_in_cents").
		WithConverter(ScaleInt(100)).
		MustBuild()

	// one shared input, read by every goroutine
	in := requestParams("update", map[string]any{"username": "aperson", "admin": "true", "amount_due": "12"})
	want := map[string]any{
		"controller":          "anonymous",
		"action":              "update",
		"login":               "aperson",
		"role":                []string{"admin"},
		"amount_due_in_cents": 1200,
	}

	const workers, calls = 50, 100
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < calls; i++ {
				got, err := p.Apply("update", in)
				if err != nil {
					t.Errorf("Apply() error = %v", err)
					return
				}
				if diff := cmp.Diff(want, got.Map()); diff != "" {
					t.Errorf("Apply() mismatch (-want +got):\n%s", diff)
					return
				}
				if _, err := m.Apply("accounts", "update", in); err != nil {
					t.Errorf("Mapper.Apply() error = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if v, _ := in.Get("username"); v != "aperson" || in.Has("login") {
		t.Errorf("shared input mutated: %v", in)
	}
	if got := m.GetStats().Requests; got != workers*calls {
		t.Errorf("requests = %d, want %d", got, workers*calls)
	}
}
