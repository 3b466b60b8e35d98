// This file is part of ngaro - https://github.com/db47h/ngaro
//
// Copyright 2016 Denis Bernard <db047h@gmail.com>
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

package asm

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Preprocess expands %include directives, strips ;-comments, applies
// %define substitutions and drops any remaining unrecognized directive
// lines, returning the resulting source text.
//
// name identifies the root source for diagnostics and relative
// %include resolution. libDir, when non-empty, is searched first for
// %include targets before falling back to a path relative to the
// including file.
func Preprocess(name string, r io.Reader, libDir string) (string, error) {
	src, err := expandIncludes(name, r, libDir, map[string]bool{})
	if err != nil {
		return "", err
	}
	src = stripComments(src)
	defines := map[string]string{}
	src = collectDefines(src, defines)
	src = applyDefines(src, defines)
	src = stripDirectives(src)
	return src, nil
}

func expandIncludes(name string, r io.Reader, libDir string, seen map[string]bool) (string, error) {
	abs, _ := filepath.Abs(name)
	if seen[abs] {
		return "", fmt.Errorf("%s: circular %%include", name)
	}
	seen[abs] = true

	var out bytes.Buffer
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%include") {
			target := strings.TrimSpace(strings.TrimPrefix(trimmed, "%include"))
			target = strings.Trim(target, `"`)
			path, f, err := openInclude(target, filepath.Dir(name), libDir)
			if err != nil {
				return "", fmt.Errorf("%s: %%include %q: %w", name, target, err)
			}
			included, err := expandIncludes(path, f, libDir, seen)
			f.Close()
			if err != nil {
				return "", err
			}
			out.WriteString(included)
			out.WriteByte('\n')
			continue
		}
		out.WriteString(line)
		out.WriteByte('\n')
	}
	if err := sc.Err(); err != nil {
		return "", err
	}
	return out.String(), nil
}

func openInclude(target, callerDir, libDir string) (string, *os.File, error) {
	if libDir != "" {
		p := filepath.Join(libDir, target)
		if f, err := os.Open(p); err == nil {
			return p, f, nil
		}
	}
	p := filepath.Join(callerDir, target)
	f, err := os.Open(p)
	if err != nil {
		return "", nil, err
	}
	return p, f, nil
}

// stripComments removes everything from the first ';' to the end of
// each line.
func stripComments(src string) string {
	lines := strings.Split(src, "\n")
	for idx, line := range lines {
		if i := strings.IndexByte(line, ';'); i >= 0 {
			lines[idx] = line[:i]
		}
	}
	return strings.Join(lines, "\n")
}

// collectDefines scans for %define NAME VALUE lines, records them in
// defines and removes those lines from the source.
func collectDefines(src string, defines map[string]string) string {
	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "%define") {
			fields := strings.Fields(strings.TrimPrefix(trimmed, "%define"))
			if len(fields) >= 1 {
				name := fields[0]
				value := ""
				if len(fields) > 1 {
					value = strings.Join(fields[1:], " ")
				}
				defines[name] = value
			}
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

// applyDefines performs a single pass of whole-word text substitution
// over src for every name in defines.
func applyDefines(src string, defines map[string]string) string {
	if len(defines) == 0 {
		return src
	}
	var b strings.Builder
	i := 0
	for i < len(src) {
		if isWordByte(src[i]) {
			j := i
			for j < len(src) && isWordByte(src[j]) {
				j++
			}
			word := src[i:j]
			if repl, ok := defines[word]; ok {
				b.WriteString(repl)
			} else {
				b.WriteString(word)
			}
			i = j
			continue
		}
		b.WriteByte(src[i])
		i++
	}
	return b.String()
}

func isWordByte(c byte) bool {
	return c == '_' || c == '.' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// stripDirectives drops any remaining line beginning with '%': an
// %include or %define that, for whatever reason, was not consumed
// above (e.g. inside a nested include already flattened) must not reach
// the parser as a bare mnemonic line.
func stripDirectives(src string) string {
	lines := strings.Split(src, "\n")
	out := lines[:0]
	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "%") {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}
