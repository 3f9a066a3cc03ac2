// Package backtrace parses raw stack traces into classified frames and
// scores similarity between error records.
package backtrace

import (
	"regexp"
	"strconv"
	"strings"
)

// FrameCategory classifies where a stack frame lives
type FrameCategory string

const (
	CategoryApp       FrameCategory = "app"
	CategoryLibrary   FrameCategory = "library"
	CategoryFramework FrameCategory = "framework"
	CategoryRuntime   FrameCategory = "runtime"
	CategoryUnknown   FrameCategory = "unknown"
)

// Frame is a single parsed backtrace line
type Frame struct {
	File     string
	Line     int
	Method   string
	Category FrameCategory
}

// framePattern matches "path/to/file.rb:42:in `method_name'" style lines;
// the method portion is optional.
var framePattern = regexp.MustCompile("^(.+?):(\\d+)(?::in `([^']+)')?")

var frameworkSegments = []string{
	"/actionpack/", "/activerecord/", "/activesupport/", "/actionview/",
	"/railties/", "/rack/", "/sinatra/", "/rails/",
}

var librarySegments = []string{
	"/gems/", "/vendor/", "/node_modules/", "/go/pkg/mod/", "/site-packages/",
	"/bundle/",
}

var runtimeSegments = []string{
	"/ruby/", "/rubies/", "/jre/", "/jdk/", "/python3", "/python2", "/usr/lib/go/",
	"<internal:",
}

// Parser splits multi-line backtrace text into classified frames.
// A configurable application-root prefix wins over the builtin heuristics.
type Parser struct {
	AppRoot string
}

// NewParser creates a parser with an optional app-root prefix
func NewParser(appRoot string) *Parser {
	return &Parser{AppRoot: appRoot}
}

// Parse splits backtrace text into frames, one per non-empty line
func (p *Parser) Parse(text string) []Frame {
	lines := strings.Split(text, "\n")
	frames := make([]Frame, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		frames = append(frames, p.ParseLine(trimmed))
	}
	return frames
}

// ParseLine parses a single backtrace line into a frame
func (p *Parser) ParseLine(line string) Frame {
	frame := Frame{File: line, Category: CategoryUnknown}

	if m := framePattern.FindStringSubmatch(line); m != nil {
		frame.File = m[1]
		if n, err := strconv.Atoi(m[2]); err == nil {
			frame.Line = n
		}
		frame.Method = m[3]
	}

	frame.Category = p.classify(frame.File)
	return frame
}

func (p *Parser) classify(file string) FrameCategory {
	if p.AppRoot != "" && strings.HasPrefix(file, p.AppRoot) {
		return CategoryApp
	}
	for _, seg := range frameworkSegments {
		if strings.Contains(file, seg) {
			return CategoryFramework
		}
	}
	for _, seg := range runtimeSegments {
		if strings.Contains(file, seg) {
			return CategoryRuntime
		}
	}
	for _, seg := range librarySegments {
		if strings.Contains(file, seg) {
			return CategoryLibrary
		}
	}
	if strings.HasPrefix(file, "app/") || strings.HasPrefix(file, "lib/") ||
		strings.Contains(file, "/app/") || strings.Contains(file, "/lib/") {
		return CategoryApp
	}
	return CategoryUnknown
}

// AppFrames returns only the frames classified as application code
func AppFrames(frames []Frame) []Frame {
	var app []Frame
	for _, f := range frames {
		if f.Category == CategoryApp {
			app = append(app, f)
		}
	}
	return app
}
