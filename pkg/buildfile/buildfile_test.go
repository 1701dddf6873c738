// SPDX-License-Identifier: MPL-2.0

package buildfile

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/invowk/buildorch/internal/dag"
	"github.com/invowk/buildorch/pkg/project"
	"github.com/invowk/buildorch/pkg/task"
)

const appCUE = `
name:                  "finances"
group:                 "com.example.finances"
build_root:            "../build"
evaluation_depends_on: ":app"
projects: [{
	id: ":app"
	plugins: ["com.android.application", "kotlin-android", "dev.flutter.flutter-gradle-plugin"]
	android: {
		application_id: "com.example.finances"
		compile_sdk:    35
		min_sdk:        24
		target_sdk:     35
		version_code:   1
		version_name:   "1.0.0"
		signing_config: "release"
	}
	kotlin: jvm_target: "11"
	dependencies: [{configuration: "coreLibraryDesugaring", notation: "com.android.tools:desugar_jdk_libs:2.1.4"}]
	tasks: [{name: "assemble", depends_on: ["compile"], run: "echo assemble"}]
}, {
	id: ":core"
	plugins: ["com.android.library"]
	tasks: [{name: "compile", run: "echo compile"}]
}]
tasks: [{name: "build", depends_on: ["assemble"]}]
`

const appHCL = `
name                  = "finances"
group                 = "com.example.finances"
build_root            = "../build"
evaluation_depends_on = ":app"

project ":app" {
  plugins = ["com.android.application", "kotlin-android", "dev.flutter.flutter-gradle-plugin"]

  android {
    application_id = "com.example.finances"
    compile_sdk    = 35
    min_sdk        = 24
    target_sdk     = 35
    version_code   = 1
    version_name   = "1.0.0"
    signing_config = "release"
  }

  kotlin {
    jvm_target = "11"
  }

  dependency "coreLibraryDesugaring" "com.android.tools:desugar_jdk_libs:2.1.4" {}

  task "assemble" {
    depends_on = ["compile"]
    run        = "echo assemble"
  }
}

project ":core" {
  plugins = ["com.android.library"]

  task "compile" {
    run = "echo compile"
  }
}

task "build" {
  depends_on = ["assemble"]
}
`

// summary flattens a build into comparable lines.
func summary(t *testing.T, b *Build) []string {
	t.Helper()

	var out []string
	for _, p := range b.Graph.Projects() {
		line := p.ID().String() + " group=" + p.Group + " plugins=" + strings.Join(p.Plugins(), ",")
		if a := p.Android(); a != nil {
			line += " app=" + a.ApplicationID + " sdk=" + strconv.Itoa(a.CompileSDK) + "/" + strconv.Itoa(a.MinSDK) + "/" + strconv.Itoa(a.TargetSDK)
		}
		if k := p.Kotlin(); k != nil {
			line += " jvm=" + k.JVMTarget
		}
		for _, d := range p.Dependencies {
			line += " dep=" + d.Configuration + ":" + d.Notation
		}
		for _, dep := range b.Graph.DependsOn(p.ID()) {
			line += " after=" + dep.String()
		}
		out = append(out, line)
	}
	for _, tk := range b.Tasks.Tasks() {
		out = append(out, "task "+tk.String()+" deps="+strings.Join(tk.Deps, ","))
	}
	return out
}

func TestParseCUE_AndHCLBuildSameGraph(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cueDesc, err := ParseCUE([]byte(appCUE), filepath.Join(dir, CUEFileName))
	if err != nil {
		t.Fatalf("ParseCUE() error: %v", err)
	}
	hclDesc, err := ParseHCL([]byte(appHCL), filepath.Join(dir, HCLFileName), nil)
	if err != nil {
		t.Fatalf("ParseHCL() error: %v", err)
	}

	cueBuild, err := cueDesc.Build("")
	if err != nil {
		t.Fatalf("Build(cue) error: %v", err)
	}
	hclBuild, err := hclDesc.Build("")
	if err != nil {
		t.Fatalf("Build(hcl) error: %v", err)
	}

	got, want := summary(t, hclBuild), summary(t, cueBuild)
	if !slices.Equal(got, want) {
		t.Errorf("graphs differ\nhcl: %q\ncue: %q", got, want)
	}

	wantApp := ":app group=com.example.finances plugins=com.android.application,kotlin-android,dev.flutter.flutter-gradle-plugin" +
		" app=com.example.finances sdk=35/24/35 jvm=11 dep=coreLibraryDesugaring:com.android.tools:desugar_jdk_libs:2.1.4"
	if want[1] != wantApp {
		t.Errorf("app summary = %q, want %q", want[1], wantApp)
	}
	if !strings.HasSuffix(want[2], "after=:app") {
		t.Errorf("core should evaluate after :app, got %q", want[2])
	}
}

func TestBuild_Layout(t *testing.T) {
	t.Parallel()

	root := filepath.Join(t.TempDir(), "android")
	d, err := ParseCUE([]byte(appCUE), filepath.Join(root, CUEFileName))
	if err != nil {
		t.Fatalf("ParseCUE() error: %v", err)
	}
	b, err := d.Build("ignored")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	buildRoot := filepath.Join(filepath.Dir(root), "build")
	if got := b.Graph.Root().BuildDir; got != buildRoot {
		t.Errorf("root build dir = %q, want %q", got, buildRoot)
	}
	app, _ := b.Graph.Project(":app")
	if app.BuildDir != filepath.Join(buildRoot, "app") {
		t.Errorf("app build dir = %q", app.BuildDir)
	}
	if app.Dir != filepath.Join(root, "app") {
		t.Errorf("app dir = %q", app.Dir)
	}
}

func TestBuild_DefaultBuildRoot(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	d := &Descriptor{Path: filepath.Join(root, CUEFileName)}
	b, err := d.Build("out")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	if got := b.Graph.Root().BuildDir; got != filepath.Join(root, "out") {
		t.Errorf("root build dir = %q", got)
	}
}

func TestParseHCL_Env(t *testing.T) {
	t.Parallel()

	src := `
group = env.GROUP

project "app" {
  group = "${env.GROUP}.app"
}
`
	d, err := ParseHCL([]byte(src), "build.hcl", []string{"GROUP=com.acme", "IGNORED"})
	if err != nil {
		t.Fatalf("ParseHCL() error: %v", err)
	}
	if d.Group != "com.acme" {
		t.Errorf("group = %q", d.Group)
	}
	if d.Projects[0].Group != "com.acme.app" {
		t.Errorf("project group = %q", d.Projects[0].Group)
	}
}

func TestParseHCL_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"undefined env var", `group = env.MISSING`},
		{"unknown attribute", `colour = "red"`},
		{"syntax", `project ":app" {`},
		{"run and delete", "task \"x\" {\n  run = \"echo\"\n  delete = [\"out\"]\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseHCL([]byte(tt.src), "build.hcl", nil); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestParseCUE_SchemaErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `colour: "red"`},
		{"bad sdk", `projects: [{id: ":app", android: {compile_sdk: 0}}]`},
		{"bad id", `projects: [{id: "a b"}]`},
		{"empty run", `tasks: [{name: "x", run: ""}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if _, err := ParseCUE([]byte(tt.src), "build.cue"); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestValidate_RunAndDelete(t *testing.T) {
	t.Parallel()

	d := &Descriptor{
		Path: "build.cue",
		Projects: []ProjectDecl{{
			ID:    ":app",
			Tasks: []TaskDecl{{Name: "x", Run: "echo", Delete: []string{"out"}}},
		}},
	}
	err := d.Validate()
	var declErr *DeclError
	if !errors.As(err, &declErr) {
		t.Fatalf("expected DeclError, got %v", err)
	}
	if declErr.Field != "projects[0].tasks[0]" {
		t.Errorf("field = %q", declErr.Field)
	}
}

func TestBuild_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		desc   Descriptor
		target error
	}{
		{
			name:   "android without plugin",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":app", Android: &AndroidDecl{}}}},
			target: errExtensionWithoutPlugin,
		},
		{
			name:   "kotlin without plugin",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":app", Kotlin: &KotlinDecl{JVMTarget: "11"}}}},
			target: errExtensionWithoutPlugin,
		},
		{
			name:   "flutter before android",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":app", Plugins: []string{project.PluginFlutter}}}},
			target: project.ErrPluginOrder,
		},
		{
			name:   "duplicate project",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":app"}, {ID: "app"}}},
			target: project.ErrDuplicateProject,
		},
		{
			name:   "unknown parent",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":feature:login", Parent: ":feature"}}},
			target: project.ErrUnknownProject,
		},
		{
			name: "dependency cycle",
			desc: Descriptor{Projects: []ProjectDecl{
				{ID: ":a", DependsOn: []string{":b"}},
				{ID: ":b", DependsOn: []string{":a"}},
			}},
			target: dag.ErrCycle,
		},
		{
			name: "evaluation depends on cycle",
			desc: Descriptor{
				EvaluationDependsOn: ":app",
				Projects: []ProjectDecl{
					{ID: ":app", DependsOn: []string{":core"}},
					{ID: ":core"},
				},
			},
			target: dag.ErrCycle,
		},
		{
			name:   "unknown dependency project",
			desc:   Descriptor{Projects: []ProjectDecl{{ID: ":a", DependsOn: []string{":missing"}}}},
			target: project.ErrUnknownProject,
		},
		{
			name: "duplicate task across projects",
			desc: Descriptor{
				Tasks:    []TaskDecl{{Name: "build"}},
				Projects: []ProjectDecl{{ID: ":app", Tasks: []TaskDecl{{Name: "build"}}}},
			},
			target: task.ErrDuplicateTask,
		},
		{
			name:   "build root is the project dir",
			desc:   Descriptor{BuildRoot: "."},
			target: project.ErrBuildRootOverlapsSources,
		},
		{
			name:   "build root above the project dir",
			desc:   Descriptor{BuildRoot: ".."},
			target: project.ErrBuildRootOverlapsSources,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			d := tt.desc
			d.Path = filepath.Join(t.TempDir(), CUEFileName)
			_, err := d.Build("")
			if !errors.Is(err, tt.target) {
				t.Fatalf("Build() error = %v, want %v", err, tt.target)
			}
			var declErr *DeclError
			if !errors.As(err, &declErr) {
				t.Errorf("expected DeclError wrapper, got %T", err)
			}
		})
	}
}

func TestBuild_InvalidScript(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Tasks: []TaskDecl{{Name: "bad", Run: "echo 'unterminated"}}}
	if _, err := d.Build(""); err == nil || !strings.Contains(err.Error(), "tasks[0].run") {
		t.Errorf("expected script syntax error at tasks[0].run, got %v", err)
	}
}

func TestBuild_ScriptEnvironment(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "app"), 0o755); err != nil {
		t.Fatal(err)
	}
	d := &Descriptor{
		Path: filepath.Join(root, CUEFileName),
		Projects: []ProjectDecl{{
			ID:    "app",
			Tasks: []TaskDecl{{Name: "where", Run: `echo "$BUILDORCH_PROJECT $PWD $BUILDORCH_BUILD_DIR"`}},
		}},
	}
	b, err := d.Build("out")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}

	tk, ok := b.Tasks.Get("where")
	if !ok {
		t.Fatal("task not registered")
	}
	var stdout bytes.Buffer
	if err := tk.Action.Run(context.Background(), &task.Execution{Task: tk, Stdout: &stdout}); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	want := ":app " + filepath.Join(root, "app") + " " + filepath.Join(root, "out", "app") + "\n"
	if stdout.String() != want {
		t.Errorf("output = %q, want %q", stdout.String(), want)
	}
}

func TestBuild_DeletePathsRelativeToProject(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	abs := filepath.Join(root, "elsewhere")
	d := &Descriptor{
		Path: filepath.Join(root, CUEFileName),
		Projects: []ProjectDecl{{
			ID:    ":app",
			Tasks: []TaskDecl{{Name: "tidy", Delete: []string{"gen", abs}}},
		}},
	}
	b, err := d.Build("")
	if err != nil {
		t.Fatalf("Build() error: %v", err)
	}
	tk, _ := b.Tasks.Get("tidy")
	action, ok := tk.Action.(*task.DeleteAction)
	if !ok {
		t.Fatalf("action = %T, want *task.DeleteAction", tk.Action)
	}
	want := []string{filepath.Join(root, "app", "gen"), abs}
	if !slices.Equal(action.Paths, want) {
		t.Errorf("paths = %v, want %v", action.Paths, want)
	}
}

func TestFind(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	if _, err := Find(dir); !errors.Is(err, ErrNoBuildfile) {
		t.Errorf("empty dir: err = %v, want ErrNoBuildfile", err)
	}

	if err := os.WriteFile(filepath.Join(dir, HCLFileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(dir); got != filepath.Join(dir, HCLFileName) {
		t.Errorf("Find() = %q, want build.hcl", got)
	}

	if err := os.WriteFile(filepath.Join(dir, CUEFileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if got, _ := Find(dir); got != filepath.Join(dir, CUEFileName) {
		t.Errorf("Find() = %q, want build.cue preferred", got)
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, HCLFileName)
	if err := os.WriteFile(path, []byte(appHCL), 0o644); err != nil {
		t.Fatal(err)
	}
	d, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Path != path || d.Name != "finances" || len(d.Projects) != 2 {
		t.Errorf("unexpected descriptor %+v", d)
	}

	other := filepath.Join(dir, "build.yaml")
	if err := os.WriteFile(other, []byte("x: 1"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(other, nil); err == nil || !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
	if _, err := Load(filepath.Join(dir, "missing.cue"), nil); err == nil {
		t.Error("expected read error")
	}
}

func TestLoad_HCLSeesGivenEnviron(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), HCLFileName)
	if err := os.WriteFile(path, []byte("group = env.BUILDORCH_TEST_GROUP\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	d, err := Load(path, []string{"BUILDORCH_TEST_GROUP=com.acme"})
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if d.Group != "com.acme" {
		t.Errorf("group = %q, want value from environ", d.Group)
	}
	if _, err := Load(path, nil); err == nil {
		t.Error("expected error for a variable missing from environ")
	}
}

func TestPropertiesPath(t *testing.T) {
	t.Parallel()

	d := &Descriptor{Path: filepath.Join("proj", "android", CUEFileName)}
	if got := d.PropertiesPath("key.properties"); got != filepath.Join("proj", "android", "key.properties") {
		t.Errorf("fallback = %q", got)
	}
	d.PropertiesFile = "signing/release.properties"
	if got := d.PropertiesPath("key.properties"); got != filepath.Join("proj", "android", "signing", "release.properties") {
		t.Errorf("declared = %q", got)
	}
	if got := (&Descriptor{}).PropertiesPath(""); got != "" {
		t.Errorf("none = %q", got)
	}
}
