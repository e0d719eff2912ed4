/*
Copyright 2026 David Arnold
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at
    http://www.apache.org/licenses/LICENSE-2.0
Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package cmd

// getOptions holds the flags of the get command.
type getOptions struct {
	provider    string
	tagKey      string
	showSecrets bool
	concurrency int
}

// keyFlags identifies a key pair on the keys subcommands.
type keyFlags struct {
	org     string
	tag     string
	account string
}

// nodeRow is one rendered row of the get output.
type nodeRow struct {
	Name         string
	ID           string
	Provider     string
	Tag          string
	Organization string
	Zone         string
	Image        string
	Account      string
	Secret       string
}
