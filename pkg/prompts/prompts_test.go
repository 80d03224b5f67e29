package prompts

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pagelens/pkg/store"
)

func newLibrary(t *testing.T) *Library {
	t.Helper()

	lib, err := NewLibrary(store.NewMemoryStore())
	if err != nil {
		t.Fatalf("NewLibrary error: %v", err)
	}
	return lib
}

func TestResolveDefaultTemplate(t *testing.T) {
	lib := newLibrary(t)

	text, err := lib.Resolve(context.Background(), "summarize")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if !strings.Contains(text, "{{.Page}}") {
		t.Fatalf("default template missing page slot: %q", text)
	}
}

func TestOverrideShadowsDefault(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	if err := lib.Save(ctx, "summarize", "Custom: {{.Page}}"); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	text, err := lib.Resolve(ctx, "summarize")
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	if text != "Custom: {{.Page}}" {
		t.Fatalf("resolved = %q, want the override", text)
	}

	// The default set itself stays untouched.
	if lib.defaults["summarize"] == text {
		t.Fatal("override leaked into the read-only default set")
	}
}

func TestResolveUnknownTemplate(t *testing.T) {
	lib := newLibrary(t)

	if _, err := lib.Resolve(context.Background(), "nope"); !errors.Is(err, ErrUnknownTemplate) {
		t.Fatalf("error = %v, want ErrUnknownTemplate", err)
	}
}

func TestListMergesDefaultsAndOverrides(t *testing.T) {
	ctx := context.Background()
	lib := newLibrary(t)

	if err := lib.Save(ctx, "custom", "X {{.Page}}"); err != nil {
		t.Fatalf("Save error: %v", err)
	}

	names, err := lib.Names(ctx)
	if err != nil {
		t.Fatalf("Names error: %v", err)
	}

	found := map[string]bool{}
	for _, name := range names {
		found[name] = true
	}
	for _, want := range []string{"summarize", "key-points", "eli5", "custom"} {
		if !found[want] {
			t.Fatalf("names = %v, missing %q", names, want)
		}
	}
}

func TestRenderSubstitutesPage(t *testing.T) {
	out, err := Render("Summarize: {{.Page}}", "some page text")
	if err != nil {
		t.Fatalf("Render error: %v", err)
	}
	if out != "Summarize: some page text" {
		t.Fatalf("rendered = %q", out)
	}
}
