package plugins

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"text/template"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Formats accepted by RenderTemplate.
const (
	FormatGo   = "go"
	FormatYAML = "yaml"
	FormatHCL  = "hcl"
)

// TemplateData fills a starter configuration.
type TemplateData struct {
	ScriptVersion string
	DirName       string
	LinkedRepos   []string
}

// TemplateFileName returns the conventional file name for format.
func TemplateFileName(format string) (string, error) {
	switch normalizeFormat(format) {
	case FormatGo:
		return "bam.go", nil
	case FormatYAML:
		return "bam.yaml", nil
	case FormatHCL:
		return "bam.hcl", nil
	default:
		return "", fmt.Errorf("plugin: unknown format %q (want go, yaml or hcl)", format)
	}
}

// RenderTemplate renders the starter configuration for format.
func RenderTemplate(format string, data TemplateData) ([]byte, error) {
	name, err := TemplateFileName(format)
	if err != nil {
		return nil, err
	}
	tmpl, err := template.ParseFS(templateFS, "templates/"+name+".tmpl")
	if err != nil {
		return nil, fmt.Errorf("plugin: parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("plugin: render template %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

// WriteTemplate renders the starter configuration into dir. Existing files are
// kept unless force is set.
func WriteTemplate(dir, format string, data TemplateData, force bool) (string, error) {
	name, err := TemplateFileName(format)
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, name)
	if !force {
		if _, err := os.Stat(path); err == nil {
			return "", fmt.Errorf("plugin: %s already exists (use --force to overwrite)", path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("plugin: stat %s: %w", path, err)
		}
	}
	content, err := RenderTemplate(format, data)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("plugin: write %s: %w", path, err)
	}
	return path, nil
}

func normalizeFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "go", ".go":
		return FormatGo
	case "yaml", "yml", ".yaml", ".yml":
		return FormatYAML
	case "hcl", ".hcl":
		return FormatHCL
	}
	return ""
}
