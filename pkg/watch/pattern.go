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

package watch

import (
	"fmt"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
)

// PatternMatcher applies include and exclude glob patterns to file paths.
// Patterns use doublestar syntax, so ** matches across path separators.
// Matching is tried against both the full path and the base filename,
// letting "*.go" work without a leading **/.
type PatternMatcher struct {
	includePatterns []string
	excludePatterns []string
}

// NewPatternMatcher validates and compiles the given pattern sets. Empty
// includePatterns match every path; excludePatterns are applied after.
func NewPatternMatcher(includePatterns, excludePatterns []string) (*PatternMatcher, error) {
	for _, pattern := range includePatterns {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			return nil, fmt.Errorf("invalid include pattern %q: %w", pattern, err)
		}
	}
	for _, pattern := range excludePatterns {
		if _, err := doublestar.Match(pattern, "probe"); err != nil {
			return nil, fmt.Errorf("invalid exclude pattern %q: %w", pattern, err)
		}
	}
	return &PatternMatcher{
		includePatterns: includePatterns,
		excludePatterns: excludePatterns,
	}, nil
}

// Match returns true if path matches the include set and no exclude
// pattern.
func (pm *PatternMatcher) Match(path string) bool {
	included := len(pm.includePatterns) == 0
	for _, pattern := range pm.includePatterns {
		if included {
			break
		}
		included = matchPattern(pattern, path)
	}
	if !included {
		return false
	}
	for _, pattern := range pm.excludePatterns {
		if matchPattern(pattern, path) {
			return false
		}
	}
	return true
}

// matchPattern tries the full path first, then the base filename.
func matchPattern(pattern, path string) bool {
	if ok, _ := doublestar.Match(pattern, path); ok {
		return true
	}
	ok, _ := doublestar.Match(pattern, filepath.Base(path))
	return ok
}
