package plugins

import (
	"go/build/constraint"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestTemplateFileName(t *testing.T) {
	tests := map[string]string{"go": "bam.go", ".go": "bam.go", "YAML": "bam.yaml", "yml": "bam.yaml", "hcl": "bam.hcl"}
	for format, want := range tests {
		got, err := TemplateFileName(format)
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		if got != want {
			t.Fatalf("%s: got %s, want %s", format, got, want)
		}
	}
	if _, err := TemplateFileName("json"); err == nil {
		t.Fatalf("expected unknown format error")
	}
}

func TestRenderedTemplatesLoad(t *testing.T) {
	data := TemplateData{ScriptVersion: "0.1.0", DirName: "starter", LinkedRepos: []string{"orga/api", "orga/web"}}
	for _, format := range []string{FormatGo, FormatYAML, FormatHCL} {
		t.Run(format, func(t *testing.T) {
			dir := t.TempDir()
			path, err := WriteTemplate(dir, format, data, false)
			if err != nil {
				t.Fatalf("write: %v", err)
			}
			hooks, err := NewLoader(&fakeRunner{}).Load(t.Context(), path)
			if err != nil {
				t.Fatalf("load rendered %s: %v", format, err)
			}
			if hooks.DirName != "starter" || hooks.ScriptVersion != "0.1.0" {
				t.Fatalf("unexpected hooks: %+v", hooks)
			}
			if !slices.Equal(hooks.LinkedRepos, data.LinkedRepos) {
				t.Fatalf("linked repos = %v", hooks.LinkedRepos)
			}
			if hooks.Install == nil || hooks.Build == nil || hooks.Deploy == nil {
				t.Fatalf("starter should declare install, build and deploy")
			}
		})
	}
}

func TestRenderTemplateWithoutLinkedRepos(t *testing.T) {
	content, err := RenderTemplate(FormatYAML, TemplateData{DirName: "solo"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	def, err := ParseConfigYAML(content)
	if err != nil {
		t.Fatalf("parse rendered yaml: %v\n%s", err, content)
	}
	if len(def.LinkedRepos) != 0 || def.DirName != "solo" {
		t.Fatalf("unexpected definition: %+v", def)
	}
}

func TestWriteTemplateKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "bam.yaml"), "dirName: mine\n")

	if _, err := WriteTemplate(dir, FormatYAML, TemplateData{}, false); err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Fatalf("expected existing file error, got %v", err)
	}
	if _, err := WriteTemplate(dir, FormatYAML, TemplateData{DirName: "theirs"}, true); err != nil {
		t.Fatalf("forced write: %v", err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(content), `dirName: "theirs"`) {
		t.Fatalf("expected overwritten content, got:\n%s", content)
	}
}

func TestGoTemplateIsHiddenFromGoBuild(t *testing.T) {
	content, err := RenderTemplate(FormatGo, TemplateData{DirName: "svc"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	first, _, _ := strings.Cut(string(content), "\n")
	expr, err := constraint.Parse(first)
	if err != nil {
		t.Fatalf("template should start with a build constraint, got %q: %v", first, err)
	}
	if expr.Eval(func(tag string) bool { return tag == "linux" }) {
		t.Fatalf("constraint %q must exclude the file from ordinary builds", first)
	}
	if !expr.Eval(func(tag string) bool { return tag == ScriptBuildTag }) {
		t.Fatalf("constraint %q must include the file when %s is set", first, ScriptBuildTag)
	}
}
