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
	"testing"

	cmdorcerrors "github.com/eyecantell/cmdorc/pkg/errors"
)

func TestResolveTemplate(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
		want     string
	}{
		{
			name:     "no placeholders",
			template: "echo hello",
			vars:     nil,
			want:     "echo hello",
		},
		{
			name:     "simple substitution",
			template: "echo {{ name }}",
			vars:     map[string]string{"name": "world"},
			want:     "echo world",
		},
		{
			name:     "whitespace variants",
			template: "{{a}} {{ a }} {{  a  }}",
			vars:     map[string]string{"a": "x"},
			want:     "x x x",
		},
		{
			name:     "nested variables",
			template: "ls {{ tests_directory }}",
			vars: map[string]string{
				"base_directory":  "/srv/app",
				"tests_directory": "{{ base_directory }}/tests",
			},
			want: "ls /srv/app/tests",
		},
		{
			name:     "deeply nested within bound",
			template: "{{ a }}",
			vars: map[string]string{
				"a": "{{ b }}", "b": "{{ c }}", "c": "{{ d }}", "d": "end",
			},
			want: "end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ResolveTemplate(tt.template, tt.vars)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ResolveTemplate() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveTemplateErrors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		vars     map[string]string
	}{
		{
			name:     "missing variable",
			template: "echo {{ missing }}",
			vars:     map[string]string{"present": "x"},
		},
		{
			name:     "two-variable cycle",
			template: "{{ a }}",
			vars:     map[string]string{"a": "{{ b }}", "b": "{{ a }}"},
		},
		{
			name:     "self cycle",
			template: "{{ a }}",
			vars:     map[string]string{"a": "{{ a }}"},
		},
		{
			name:     "growing cycle",
			template: "{{ a }}",
			vars:     map[string]string{"a": "x {{ a }}"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveTemplate(tt.template, tt.vars)
			if err == nil {
				t.Fatal("expected template error, got nil")
			}
			var templateErr *cmdorcerrors.TemplateError
			if !cmdorcerrors.As(err, &templateErr) {
				t.Fatalf("expected *TemplateError, got %T: %v", err, err)
			}
		})
	}
}
