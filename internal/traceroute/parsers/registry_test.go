package parsers

import "testing"

func TestRegistry_SelectsBestByHostCount(t *testing.T) {
	// A valid MTR JSON document also happens to satisfy the catch-all
	// grammar's loose line-splitting in no useful way, so the registry
	// must still land on mtr-json here: it is simply the only parser able
	// to extract any hosts from this input.
	res, ok := Parse(mtrJSONHopsSample)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ParserName != "mtr-json" {
		t.Errorf("expected mtr-json to win, got %s", res.ParserName)
	}
	if countHosts(res.Hops) != 2 {
		t.Errorf("expected 2 hosts, got %d", countHosts(res.Hops))
	}
}

func TestRegistry_NoParserMatches(t *testing.T) {
	if _, ok := Parse("this is not a traceroute at all, just prose."); ok {
		t.Fatal("expected no match")
	}
}

func TestRegistry_BSDSampleWins(t *testing.T) {
	res, ok := Parse(bsdSample)
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ParserName != "bsd" {
		t.Errorf("expected bsd parser to win, got %s", res.ParserName)
	}
}

func TestRegistry_TieBreaksByRegistrationOrder(t *testing.T) {
	// Two trivially-constructed single-line stub parsers that both
	// recognize the same input and extract the same host count: the
	// earlier one in registration order must win.
	a := stubParser{name: "a", hosts: map[int][]HopHost{1: {{Host: "1.1.1.1"}}}}
	b := stubParser{name: "b", hosts: map[int][]HopHost{1: {{Host: "1.1.1.1"}}}}

	saved := registered
	registered = []Parser{a, b}
	defer func() { registered = saved }()

	res, ok := Parse("irrelevant")
	if !ok {
		t.Fatal("expected a match")
	}
	if res.ParserName != "a" {
		t.Errorf("expected earlier-registered parser to win a tie, got %s", res.ParserName)
	}
}

func TestRegistry_EmptyHopsDoesNotCountAsFound(t *testing.T) {
	// A parser that recognizes the grammar but extracts zero hosts must
	// not be reported as a match.
	empty := stubParser{name: "empty", hosts: map[int][]HopHost{}}

	saved := registered
	registered = []Parser{empty}
	defer func() { registered = saved }()

	if _, ok := Parse("irrelevant"); ok {
		t.Fatal("expected no match when the only parser extracts zero hosts")
	}
}

type stubParser struct {
	name  string
	hosts map[int][]HopHost
}

func (s stubParser) Name() string { return s.name }
func (s stubParser) Parse(string) (map[int][]HopHost, error) { return s.hosts, nil }
