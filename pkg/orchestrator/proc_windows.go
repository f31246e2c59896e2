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

//go:build windows

package orchestrator

import "os/exec"

// setProcAttrs is a no-op on Windows; process groups in the Unix sense are
// not available, so group-wide signalling is waived.
func setProcAttrs(cmd *exec.Cmd) {}

// terminateProcess has no soft-terminate equivalent on Windows; the
// process is killed outright.
func terminateProcess(cmd *exec.Cmd) {
	killProcess(cmd)
}

// killProcess forcefully terminates the child process.
func killProcess(cmd *exec.Cmd) {
	if cmd.Process != nil {
		_ = cmd.Process.Kill()
	}
}
