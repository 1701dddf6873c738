// SPDX-License-Identifier: MPL-2.0

package project

import (
	"errors"
	"slices"
	"testing"
)

func TestApplyPlugin_AttachesExtensions(t *testing.T) {
	t.Parallel()

	g := NewGraph(Layout{RootDir: "/r"})
	app, err := g.AddProject(":app", "")
	if err != nil {
		t.Fatal(err)
	}

	if app.Android() != nil {
		t.Fatal("android extension must be absent before the plugin is applied")
	}
	for _, id := range []string{PluginAndroidApplication, PluginKotlinAndroid, PluginFlutter, "com.google.gms.google-services"} {
		if err := app.ApplyPlugin(id); err != nil {
			t.Fatalf("ApplyPlugin(%s): %v", id, err)
		}
	}
	if app.Android() == nil || app.Kotlin() == nil {
		t.Fatal("expected android and kotlin extensions")
	}

	app.Android().CompileSDK = 35
	if err := app.ApplyPlugin(PluginAndroidApplication); err != nil {
		t.Fatal(err)
	}
	if app.Android().CompileSDK != 35 {
		t.Error("re-applying a plugin must not reset its extension")
	}
	want := []string{PluginAndroidApplication, PluginKotlinAndroid, PluginFlutter, "com.google.gms.google-services"}
	if !slices.Equal(app.Plugins(), want) {
		t.Errorf("Plugins() = %v", app.Plugins())
	}
}

func TestApplyPlugin_FlutterRequiresAndroid(t *testing.T) {
	t.Parallel()

	g := NewGraph(Layout{RootDir: "/r"})
	app, _ := g.AddProject(":app", "")

	err := app.ApplyPlugin(PluginFlutter)
	var orderErr *PluginOrderError
	if !errors.As(err, &orderErr) {
		t.Fatalf("expected PluginOrderError, got %v", err)
	}
	if app.HasPlugin(PluginFlutter) {
		t.Error("rejected plugin must not be recorded")
	}
}

func TestAndroidExtension_OptionalNamespace(t *testing.T) {
	t.Parallel()

	var capability OptionalNamespace = &AndroidExtension{}

	if _, set, err := capability.TryGetNamespace(); set || err != nil {
		t.Fatalf("expected unset namespace, got set=%v err=%v", set, err)
	}
	if err := capability.TrySetNamespace("  "); !errors.Is(err, ErrEmptyNamespace) {
		t.Errorf("expected ErrEmptyNamespace, got %v", err)
	}
	if err := capability.TrySetNamespace("com.example"); err != nil {
		t.Fatal(err)
	}
	if ns, set, _ := capability.TryGetNamespace(); !set || ns != "com.example" {
		t.Errorf("namespace = %q set=%v", ns, set)
	}
}

func TestSigningDescriptor(t *testing.T) {
	t.Parallel()

	var s SigningDescriptor
	if !s.IsAbsent() || s.IsComplete() {
		t.Error("zero descriptor must be absent and incomplete")
	}
	alias := "upload"
	s.KeyAlias = &alias
	if s.IsAbsent() || s.IsComplete() {
		t.Error("partial descriptor must be neither absent nor complete")
	}
}
