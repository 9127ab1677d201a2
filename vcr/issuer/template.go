/*
 * Copyright (C) 2025 Nuts community
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 *
 */

package issuer

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/nuts-foundation/ebsi-issuer/core"
	"github.com/nuts-foundation/ebsi-issuer/vcr/log"
)

//go:embed assets
var assets embed.FS

const assetsFolder = "assets"

const (
	templateExtension   = ".mustache"
	defaultTemplateName = "default"
)

// TemplateData holds the values available to a credential subject template.
type TemplateData struct {
	CredentialID string
	Issuer       string
	Subject      string
	Types        []string
	IssuedAt     time.Time
}

func (d TemplateData) context() map[string]string {
	return map[string]string{
		"id":       jsonEscape(d.CredentialID),
		"issuer":   jsonEscape(d.Issuer),
		"subject":  jsonEscape(d.Subject),
		"type":     jsonEscape(d.Types[len(d.Types)-1]),
		"issuedAt": d.IssuedAt.UTC().Format(time.RFC3339),
	}
}

// jsonEscape escapes the value so it can be placed in a JSON string literal.
func jsonEscape(value string) string {
	data, _ := json.Marshal(value)
	return string(data[1 : len(data)-1])
}

// NewTemplateRenderer loads the embedded templates, and the templates in dir (if not empty) which take precedence.
// A template is selected by the most specific (last) credential type, falling back to the default template.
func NewTemplateRenderer(dir string) (TemplateRenderer, error) {
	renderer := &mustacheRenderer{templates: map[string]*mustache.Template{}}
	entries, _ := assets.ReadDir(assetsFolder)
	for _, entry := range entries {
		data, _ := assets.ReadFile(path.Join(assetsFolder, entry.Name()))
		if err := renderer.add(entry.Name(), string(data)); err != nil {
			return nil, err
		}
	}
	if dir == "" {
		return renderer, nil
	}
	files, err := filepath.Glob(filepath.Join(dir, "*"+templateExtension))
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("unable to read credential template (file=%s): %w", file, err)
		}
		if err = renderer.add(filepath.Base(file), string(data)); err != nil {
			return nil, err
		}
		log.Logger().Debugf("Loaded credential template (file=%s)", file)
	}
	return renderer, nil
}

type mustacheRenderer struct {
	templates map[string]*mustache.Template
}

func (m *mustacheRenderer) add(fileName string, raw string) error {
	tpl, err := mustache.ParseString(raw)
	if err != nil {
		return fmt.Errorf("invalid credential template (%s): %w", fileName, err)
	}
	m.templates[strings.TrimSuffix(fileName, templateExtension)] = tpl
	return nil
}

func (m *mustacheRenderer) Render(data TemplateData) (map[string]interface{}, error) {
	if len(data.Types) == 0 {
		return nil, errors.New("credential types are required")
	}
	tpl, ok := m.templates[data.Types[len(data.Types)-1]]
	if !ok {
		tpl = m.templates[defaultTemplateName]
	}
	if tpl == nil {
		return nil, errors.New("no default credential template")
	}
	mustache.AllowMissingVariables = false
	rendered, err := tpl.Render(data.context())
	if err != nil {
		return nil, fmt.Errorf("unable to render credential subject: %w", err)
	}
	var result map[string]interface{}
	if err = json.Unmarshal([]byte(rendered), &result); err != nil {
		return nil, core.WrapError(errors.New("credential template did not render a JSON object"), err)
	}
	return result, nil
}
