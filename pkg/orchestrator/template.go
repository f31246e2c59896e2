// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package orchestrator

import (
	"fmt"
	"regexp"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// varPattern matches {{ variable_name }} placeholders.
var varPattern = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// maxTemplateDepth bounds nested variable expansion. Values may themselves
// contain placeholders; expansion repeats until the string stabilizes or
// the bound is hit.
const maxTemplateDepth = 10

// ResolveTemplate expands {{ var }} placeholders in template using vars.
// It fails with a *errors.TemplateError on a missing variable, a cycle
// among variables, or nesting deeper than maxTemplateDepth.
func ResolveTemplate(template string, vars map[string]string) (string, error) {
	current := template
	for i := 0; i < maxTemplateDepth; i++ {
		next, err := substituteOnce(current, template, vars)
		if err != nil {
			return "", err
		}
		if next == current {
			// Stable. A remaining placeholder here means a variable that
			// expands to itself.
			if varPattern.MatchString(current) {
				return "", &errors.TemplateError{
					Template: template,
					Reason:   "variable expands to itself",
				}
			}
			return current, nil
		}
		current = next
	}
	return "", &errors.TemplateError{
		Template: template,
		Reason:   fmt.Sprintf("exceeded max expansion depth (%d); variable cycle or nesting too deep", maxTemplateDepth),
	}
}

// substituteOnce performs a single substitution pass. original is carried
// for error reporting only.
func substituteOnce(s, original string, vars map[string]string) (string, error) {
	var missing string
	out := varPattern.ReplaceAllStringFunc(s, func(m string) string {
		name := varPattern.FindStringSubmatch(m)[1]
		value, ok := vars[name]
		if !ok {
			if missing == "" {
				missing = name
			}
			return m
		}
		return value
	})
	if missing != "" {
		return "", &errors.TemplateError{Template: original, Var: missing, Reason: "variable not defined"}
	}
	return out, nil
}
