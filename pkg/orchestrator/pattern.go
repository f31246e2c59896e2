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
	"strings"

	"github.com/eyecantell/cmdorc/pkg/errors"
)

// eventPattern is a compiled subscription pattern: either an exact trigger
// string or a trigger string with a single * wildcard. The wildcard
// matches one or more non-colon characters, which keeps matching cheap and
// prevents a pattern from spanning the event:command separator.
type eventPattern struct {
	raw      string
	wildcard bool
	prefix   string
	suffix   string
}

// compileEventPattern validates and compiles a subscription pattern.
func compileEventPattern(pattern string) (eventPattern, error) {
	if pattern == "" {
		return eventPattern{}, &errors.ConfigError{Reason: "event pattern cannot be empty"}
	}
	for _, r := range pattern {
		if !isTriggerRune(r) && r != '*' {
			return eventPattern{}, &errors.ConfigError{
				Reason: fmt.Sprintf("invalid character %q in event pattern %q", r, pattern),
			}
		}
	}
	switch strings.Count(pattern, "*") {
	case 0:
		return eventPattern{raw: pattern}, nil
	case 1:
		i := strings.IndexByte(pattern, '*')
		return eventPattern{
			raw:      pattern,
			wildcard: true,
			prefix:   pattern[:i],
			suffix:   pattern[i+1:],
		}, nil
	default:
		return eventPattern{}, &errors.ConfigError{
			Reason: fmt.Sprintf("event pattern %q may contain at most one wildcard", pattern),
		}
	}
}

// Match reports whether event matches the pattern. Exact patterns require
// string equality; the wildcard must cover at least one character and
// never matches a colon.
func (p eventPattern) Match(event string) bool {
	if !p.wildcard {
		return event == p.raw
	}
	if len(event) < len(p.prefix)+len(p.suffix)+1 {
		return false
	}
	if !strings.HasPrefix(event, p.prefix) || !strings.HasSuffix(event, p.suffix) {
		return false
	}
	mid := event[len(p.prefix) : len(event)-len(p.suffix)]
	return !strings.Contains(mid, ":")
}

// isTriggerRune reports whether r is legal in a trigger string.
func isTriggerRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '_' || r == '-' || r == ':':
		return true
	}
	return false
}
