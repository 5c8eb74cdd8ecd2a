// Package parsers implements the traceroute format registry: one Parser
// per recognized command-line tool's output, tried against every submitted
// raw text by the registry, which then keeps whichever parser extracted
// the most host replies.
package parsers

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/richtraceroute/enrichmentd/internal/errs"
)

var hostnameLabelRe = regexp.MustCompile(`(?i)^[_a-z0-9]([_a-z0-9-]{0,61}[_a-z0-9])?$`)

// HopHost is a single reply observed for a hop, in the generic shape every
// parser produces regardless of input format. A nil RTT field means that
// attribute was not present in the source text.
type HopHost struct {
	Host   string
	Loss   *float64
	AvgRTT *float64
	MinRTT *float64
	MaxRTT *float64
}

// Parser recognizes one traceroute text format and extracts its hops.
type Parser interface {
	// Name identifies the format, used in error messages, metrics labels,
	// and as the registry's tie-break-by-registration-order key.
	Name() string
	// Parse extracts hop -> hosts from raw. It returns an
	// *errs.ParseError when raw does not match this parser's format. The
	// MTR, Junos and MTR-JSON parsers return hop numbers as they appear in
	// raw and do not check them for gaps; the others return hops numbered
	// from 1 with no gaps.
	Parse(raw string) (map[int][]HopHost, error)
}

// LooksLikeHostname applies the heuristic shared by every parser that must
// decide whether a bare token is a hostname rather than RTT/marker noise:
// at least 4 characters, at most 253, label-by-label DNS-legal, and never
// the literal "ms"/"msec" (which otherwise satisfy the label grammar).
func LooksLikeHostname(hostname string) bool {
	lower := strings.ToLower(hostname)
	if lower == "ms" || lower == "msec" {
		return false
	}
	trimmed := strings.TrimSuffix(hostname, ".")
	if len(trimmed) < 4 || len(trimmed) > 253 {
		return false
	}
	for _, label := range strings.Split(trimmed, ".") {
		if !hostnameLabelRe.MatchString(label) {
			return false
		}
	}
	return true
}

// ExtractRTT parses an RTT value that may carry a trailing "ms"/"msec" unit.
func ExtractRTT(s string) (float64, error) {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasSuffix(s, "msec"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "msec"))
	case strings.HasSuffix(s, "ms"):
		s = strings.TrimSpace(strings.TrimSuffix(s, "ms"))
	}
	return strconv.ParseFloat(s, 64)
}

func parseErr(parser, format string, args ...any) error {
	return errs.NewParseError(parser, fmt.Sprintf(format, args...))
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func atoiMust(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func stripNoise(s string) string {
	s = strings.ReplaceAll(s, "(", "")
	s = strings.ReplaceAll(s, ")", "")
	s = strings.ReplaceAll(s, "^C", "")
	return strings.TrimSpace(s)
}

func safeSlice(s string, from int) string {
	if len(s) <= from {
		return ""
	}
	return s[from:]
}

func floatPtr(f float64) *float64 { return &f }
