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

import "testing"

func TestCompileEventPatternErrors(t *testing.T) {
	tests := []string{
		"",
		"two*wild*cards",
		"has space",
		"bad/char",
	}
	for _, pattern := range tests {
		t.Run(pattern, func(t *testing.T) {
			if _, err := compileEventPattern(pattern); err == nil {
				t.Fatalf("compileEventPattern(%q) expected error", pattern)
			}
		})
	}
}

func TestEventPatternMatch(t *testing.T) {
	tests := []struct {
		pattern string
		event   string
		want    bool
	}{
		// exact patterns
		{"command_success:Test", "command_success:Test", true},
		{"command_success:Test", "command_success:Tests", false},
		{"go", "go", true},
		{"go", "gone", false},

		// wildcard over the state position
		{"command_*:Test", "command_success:Test", true},
		{"command_*:Test", "command_failed:Test", true},
		{"command_*:Test", "command_started:Test", true},
		{"command_*:Test", "command_success:Other", false},

		// wildcard over the command position
		{"command_success:*", "command_success:Build", true},
		{"command_success:*", "command_success:my-cmd_2", true},
		{"command_success:*", "command_failed:Build", false},

		// wildcard must cover at least one character
		{"go*", "go", false},
		{"go*", "gox", true},

		// wildcard never crosses a colon
		{"command_*", "command_success:Test", false},
		{"*", "plain_event", true},
		{"*", "with:colon", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"/"+tt.event, func(t *testing.T) {
			p, err := compileEventPattern(tt.pattern)
			if err != nil {
				t.Fatalf("compile failed: %v", err)
			}
			if got := p.Match(tt.event); got != tt.want {
				t.Errorf("Match(%q, %q) = %v, want %v", tt.pattern, tt.event, got, tt.want)
			}
		})
	}
}
