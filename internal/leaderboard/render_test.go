package leaderboard

import (
	"strings"
	"testing"
)

func TestMatchString_TwoTeamWinnerLoser(t *testing.T) {
	teams := [][]PlayerRecord{
		{{Name: "Alice", DisplayRating: 1520, OldRating: 1500}},
		{{Name: "Bob", DisplayRating: 1480, OldRating: 1500}},
	}
	_, summary := MatchString(teams, nil, []bool{false})
	if !strings.HasPrefix(summary, "Winner/Loser") {
		t.Fatalf("expected a Winner/Loser header, got %q", summary)
	}
	if !strings.Contains(summary, "Alice") || !strings.Contains(summary, "Bob") {
		t.Fatalf("expected both names present, got %q", summary)
	}
}

func TestMatchString_TwoTeamDraw(t *testing.T) {
	teams := [][]PlayerRecord{
		{{Name: "Alice", DisplayRating: 1500, OldRating: 1500}},
		{{Name: "Bob", DisplayRating: 1500, OldRating: 1500}},
	}
	_, summary := MatchString(teams, nil, []bool{true})
	if !strings.HasPrefix(summary, "Draw") {
		t.Fatalf("expected a Draw header for a tied two-team match, got %q", summary)
	}
}

func TestMatchString_NameAppearsExactlyOnce(t *testing.T) {
	teams := [][]PlayerRecord{
		{{Name: "Alice", DisplayRating: 1520, OldRating: 1500}},
		{{Name: "Bob", DisplayRating: 1500, OldRating: 1500}},
		{{Name: "Carol", DisplayRating: 1480, OldRating: 1500}},
	}
	_, summary := MatchString(teams, nil, []bool{false, false})
	for _, name := range []string{"Alice", "Bob", "Carol"} {
		if strings.Count(summary, name) != 1 {
			t.Fatalf("expected %q exactly once in summary %q, got %d", name, summary, strings.Count(summary, name))
		}
	}
}

func TestEscapeName_BackslashEscapesMarkdown(t *testing.T) {
	got := escapeName("a*b_c~d`e>f:g#h-i")
	for _, ch := range []string{"*", "_", "~", "`", ">", ":", "#", "-"} {
		if !strings.Contains(got, `\`+ch) {
			t.Fatalf("expected %q escaped in %q", ch, got)
		}
	}
}

func TestSplitMessages_RespectsUnitCap(t *testing.T) {
	lines := make([]string, 0, 200)
	for i := 0; i < 200; i++ {
		lines = append(lines, strings.Repeat("x", 20))
	}
	messages := SplitMessages(lines, 100)
	if len(messages) < 2 {
		t.Fatalf("expected lines to split across multiple messages, got %d", len(messages))
	}
	for _, m := range messages {
		if utf16Len(m) > 100 {
			t.Fatalf("message exceeds cap: %d units", utf16Len(m))
		}
	}
}

func TestFormatLeaderboard_OneLinePerPlayerRanked(t *testing.T) {
	players := []PlayerRecord{
		{Name: "Alice", DisplayRating: 1600, RatingDeviation: 50},
		{Name: "Bob", DisplayRating: 1500, RatingDeviation: 60},
	}
	lines := FormatLeaderboard(players)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "1. Alice") || !strings.HasPrefix(lines[1], "2. Bob") {
		t.Fatalf("expected rank-prefixed lines, got %v", lines)
	}
}
