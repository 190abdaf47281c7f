// File: internal/testrunner/parser.go
// Description: language-specific failure parsers, reproduced exactly per
// the documented parsing-rules table — each one is deliberately narrow
// and regex-driven rather than a shared abstraction, since the formats
// have nothing in common beyond "file:line somewhere nearby".
package testrunner

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	nodeStackRe    = regexp.MustCompile(`at .*\(([^():]+):(\d+):\d+\)`)
	nodeTestNameRe = regexp.MustCompile(`●\s*(.+)`)

	pyFailedRe    = regexp.MustCompile(`^FAILED\s+(\S+)::(\S+)`)
	pyTracebackRe = regexp.MustCompile(`File "([^"]+)", line (\d+)`)

	javaFailSummaryRe = regexp.MustCompile(`Tests run:\s*(\d+),\s*Failures:\s*(\d+)`)
	javaRunningRe     = regexp.MustCompile(`Running\s+([\w.]+)`)

	goFailRe     = regexp.MustCompile(`^--- FAIL:\s*(\S+)`)
	goFileLineRe = regexp.MustCompile(`([\w./\-]+\.go):(\d+)`)

	genericRe = regexp.MustCompile(`(?i)(error|fail).*?([\w./\-]+\.\w+):(\d+)`)
)

// parseFailures dispatches to the per-language parser. Unknown project
// types fall through to the generic regex parser.
func parseFailures(projectType ProjectType, output string) []Failure {
	switch projectType {
	case ProjectNode:
		return parseNode(output)
	case ProjectPython:
		return parsePython(output)
	case ProjectJava:
		return parseJava(output)
	case ProjectGo:
		return parseGo(output)
	default:
		return parseGeneric(output)
	}
}

// parseNode extracts jest-style "● <test>" blocks and the file/line from
// the nearest "at … (file:line:col)" stack frame following it.
func parseNode(output string) []Failure {
	lines := strings.Split(output, "\n")
	var failures []Failure
	var currentName string

	for _, line := range lines {
		if m := nodeTestNameRe.FindStringSubmatch(line); m != nil {
			currentName = strings.TrimSpace(m[1])
			continue
		}
		if m := nodeStackRe.FindStringSubmatch(line); m != nil && currentName != "" {
			lineNum, _ := strconv.Atoi(m[2])
			failures = append(failures, Failure{File: m[1], Line: lineNum, Name: currentName, Message: strings.TrimSpace(line)})
			currentName = ""
		}
	}
	return failures
}

// parsePython extracts "FAILED file::name" lines and pairs them with the
// nearest following traceback "File \"…\", line N".
func parsePython(output string) []Failure {
	lines := strings.Split(output, "\n")
	var failures []Failure
	var pendingName string

	for _, line := range lines {
		if m := pyFailedRe.FindStringSubmatch(line); m != nil {
			pendingName = m[2]
			continue
		}
		if m := pyTracebackRe.FindStringSubmatch(line); m != nil {
			lineNum, _ := strconv.Atoi(m[2])
			name := pendingName
			if name == "" {
				name = m[1]
			}
			failures = append(failures, Failure{File: m[1], Line: lineNum, Name: name, Message: strings.TrimSpace(line)})
			pendingName = ""
		}
	}
	return failures
}

// parseJava derives the failing file from the dotted class name in the
// nearest preceding "Running <Class>" line once a "Tests run: X,
// Failures: Y>0" summary confirms a failure occurred.
func parseJava(output string) []Failure {
	lines := strings.Split(output, "\n")
	var failures []Failure
	var currentClass string

	for _, line := range lines {
		if m := javaRunningRe.FindStringSubmatch(line); m != nil {
			currentClass = m[1]
			continue
		}
		if m := javaFailSummaryRe.FindStringSubmatch(line); m != nil {
			failCount, _ := strconv.Atoi(m[2])
			if failCount > 0 && currentClass != "" {
				file := strings.ReplaceAll(currentClass, ".", "/") + ".java"
				failures = append(failures, Failure{File: file, Name: currentClass, Message: strings.TrimSpace(line)})
			}
		}
	}
	return failures
}

// parseGo extracts "--- FAIL: <TestName>" markers and the file:line from
// the next line reporting a source location.
func parseGo(output string) []Failure {
	lines := strings.Split(output, "\n")
	var failures []Failure
	var pendingName string

	for _, line := range lines {
		if m := goFailRe.FindStringSubmatch(line); m != nil {
			pendingName = m[1]
			continue
		}
		if m := goFileLineRe.FindStringSubmatch(line); m != nil && pendingName != "" {
			lineNum, _ := strconv.Atoi(m[2])
			failures = append(failures, Failure{File: m[1], Line: lineNum, Name: pendingName, Message: strings.TrimSpace(line)})
			pendingName = ""
		}
	}
	return failures
}

// parseGeneric is the fallback used for unrecognized project types: any
// line matching (error|fail) with a trailing file.ext:line.
func parseGeneric(output string) []Failure {
	var failures []Failure
	for _, line := range strings.Split(output, "\n") {
		m := genericRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		lineNum, _ := strconv.Atoi(m[3])
		failures = append(failures, Failure{File: m[2], Line: lineNum, Message: strings.TrimSpace(line)})
	}
	return failures
}

// dedupe removes failures sharing the same (file, line), keeping the
// first occurrence.
func dedupe(failures []Failure) []Failure {
	seen := make(map[string]bool, len(failures))
	out := make([]Failure, 0, len(failures))
	for _, f := range failures {
		key := f.File + ":" + strconv.Itoa(f.Line)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}
