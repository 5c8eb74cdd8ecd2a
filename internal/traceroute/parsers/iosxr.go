package parsers

import "regexp"

var mplsLabelRe = regexp.MustCompile(`\[MPLS:[^\]]*\]`)

// IOSXRParser understands Cisco IOS-XR traceroute output, which is
// BSD-like except hops can carry a "[MPLS: Label n Exp n]" annotation that
// must be stripped before the BSD column parser runs.
type IOSXRParser struct{}

func (IOSXRParser) Name() string { return "iosxr" }

func (p IOSXRParser) Parse(raw string) (map[int][]HopHost, error) {
	cleaned := mplsLabelRe.ReplaceAllString(raw, "")
	b := newLineByLineBuilder()
	if err := buildBSDLike(p.Name(), cleaned, b); err != nil {
		return nil, err
	}
	return b.finish(p.Name())
}
