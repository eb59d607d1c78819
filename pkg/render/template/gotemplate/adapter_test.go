package gotemplate

import (
	"strings"
	"testing"
	"testing/fstest"

	"github.com/flosch/pongo2/v6"
	"github.com/google/go-cmp/cmp"
)

type fieldView struct {
	Name  string
	Label string
}

func TestRenderPageFromFS(t *testing.T) {
	files := fstest.MapFS{
		"layout.html": {Data: []byte("<main>{% block body %}{% endblock %}</main>")},
		"fill.html": {Data: []byte(`{% extends "layout.html" %}{% block body %}` +
			`{% for f in fields %}<label for="{{ f.Name }}">{{ greet(lang, f.Label) }}</label>{% endfor %}{% endblock %}`)},
	}
	engine, err := New(WithFS(files), WithFunctions(map[string]any{
		"greet": func(lang, s string) string { return lang + ":" + s },
	}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	var out strings.Builder
	err = engine.RenderPage(&out, "fill", map[string]any{
		"lang":   "en",
		"fields": []fieldView{{Name: "city", Label: "City <name>"}},
	})
	if err != nil {
		t.Fatalf("render page: %v", err)
	}
	want := `<main><label for="city">en:City &lt;name&gt;</label></main>`
	if diff := cmp.Diff(want, out.String()); diff != "" {
		t.Fatalf("page mismatch (-want +got):\n%s", diff)
	}
}

func TestRenderPageMissingWritesNothing(t *testing.T) {
	engine, err := New(WithFS(fstest.MapFS{}))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	var out strings.Builder
	if err := engine.RenderPage(&out, "nope", nil); err == nil {
		t.Fatalf("expected error for missing page")
	}
	if out.Len() != 0 {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRenderCachedKeepsSafeValues(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	data := map[string]any{
		"raw":  "<b>",
		"safe": pongo2.AsSafeValue("&lt;b&gt;"),
		"name": "  Ada ",
	}
	got, err := engine.RenderCached("k1", []byte("{{ raw }}|{{ safe }}|{{ name|trim }}"), data)
	if err != nil {
		t.Fatalf("render cached: %v", err)
	}
	if diff := cmp.Diff("&lt;b&gt;|&lt;b&gt;|Ada", string(got)); diff != "" {
		t.Fatalf("escaping mismatch (-want +got):\n%s", diff)
	}

	// The key owns the compiled body; a second call reuses it.
	again, err := engine.RenderCached("k1", []byte("ignored"), data)
	if err != nil {
		t.Fatalf("render cached again: %v", err)
	}
	if string(again) != string(got) {
		t.Fatalf("expected cached template, got %q", again)
	}
}

func TestRenderCachedEvictsLeastRecentlyUsed(t *testing.T) {
	engine, err := New(WithCacheSize(2))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	render := func(key, body string) string {
		t.Helper()
		out, err := engine.RenderCached(key, []byte(body), nil)
		if err != nil {
			t.Fatalf("render %s: %v", key, err)
		}
		return string(out)
	}

	render("k1", "one")
	render("k2", "two")
	render("k3", "three")
	if got := engine.compiled.Len(); got != 2 {
		t.Fatalf("expected 2 cached templates, got %d", got)
	}
	// k1 was dropped, so its key compiles the new body.
	if got := render("k1", "fresh"); got != "fresh" {
		t.Fatalf("expected k1 to be recompiled, got %q", got)
	}
	// k3 is still cached and keeps its first body.
	if got := render("k3", "ignored"); got != "three" {
		t.Fatalf("expected cached k3, got %q", got)
	}
}

func TestBannedTags(t *testing.T) {
	engine, err := New(WithName("banned"), WithBannedTags("ssi"))
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.RenderCached("ssi", []byte(`{% ssi "/etc/hostname" %}`), nil); err == nil {
		t.Fatalf("expected banned tag error")
	}
}

func TestRenderCachedRequiresKey(t *testing.T) {
	engine, err := New()
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	if _, err := engine.RenderCached(" ", []byte("x"), nil); err == nil {
		t.Fatalf("expected error for empty key")
	}
}
