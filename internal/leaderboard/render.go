package leaderboard

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode/utf16"
)

// discordEscaper backslash-escapes the markdown control characters Discord
// treats specially in a rendered name (spec §4.6).
var discordEscaper = strings.NewReplacer(
	`\`, `\\`,
	`*`, `\*`,
	`_`, `\_`,
	`~`, `\~`,
	"`", "\\`",
	`>`, `\>`,
	`:`, `\:`,
	`#`, `\#`,
	`-`, `\-`,
)

func escapeName(name string) string {
	return discordEscaper.Replace(name)
}

func signed(delta float64) string {
	return fmt.Sprintf("%+.0f", math.Round(delta))
}

func playerBlock(p PlayerRecord) string {
	return fmt.Sprintf("%s (%.0f, %s)", escapeName(p.Name), math.Round(p.DisplayRating), signed(p.DisplayRating-p.OldRating))
}

// MatchString implements spec §4.6: detailed is for the match-log sink,
// summary for the room's chat. Exactly one of score or ties should be
// supplied, matching the two rendering modes the spec describes.
func MatchString(teamsData [][]PlayerRecord, score []float64, ties []bool) (detailed, summary string) {
	if score != nil {
		return matchStringScored(teamsData, score)
	}
	return matchStringTies(teamsData, ties)
}

func matchStringScored(teamsData [][]PlayerRecord, score []float64) (detailed, summary string) {
	order := make([]int, len(teamsData))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool { return score[order[i]] > score[order[j]] })

	scoreParts := make([]string, len(order))
	var detailLines, summaryParts []string
	for rank, idx := range order {
		scoreParts[rank] = fmt.Sprintf("%.0f", score[idx])

		names := make([]string, len(teamsData[idx]))
		for i, p := range teamsData[idx] {
			names[i] = playerBlock(p)
		}
		detailLines = append(detailLines, fmt.Sprintf("Team %d (%s): %s", rank+1, scoreParts[rank], strings.Join(names, ", ")))
		summaryParts = append(summaryParts, strings.Join(names, ", "))
	}

	detailed = strings.Join(scoreParts, "-") + "\n" + strings.Join(detailLines, "\n")
	summary = strings.Join(summaryParts, " vs ")
	return detailed, summary
}

func matchStringTies(teamsData [][]PlayerRecord, ties []bool) (detailed, summary string) {
	placements := make([]int, len(teamsData))
	ordinal := 1
	for i := range teamsData {
		if i > 0 && i-1 < len(ties) && ties[i-1] {
			placements[i] = placements[i-1]
		} else {
			placements[i] = ordinal
		}
		ordinal++
	}

	if len(teamsData) == 2 {
		tied := len(ties) > 0 && ties[0]
		header := "Winner/Loser"
		if tied {
			header = "Draw"
		}
		names0 := teamNames(teamsData[0])
		names1 := teamNames(teamsData[1])
		summary = fmt.Sprintf("%s: %s vs %s", header, strings.Join(names0, ", "), strings.Join(names1, ", "))
		detailed = summary + "\n" + strings.Join(append(blocks(teamsData[0]), blocks(teamsData[1])...), "\n")
		return detailed, summary
	}

	var lines []string
	for i, team := range teamsData {
		lines = append(lines, fmt.Sprintf("%d. %s", placements[i], strings.Join(teamNames(team), ", ")))
	}
	summary = strings.Join(lines, " | ")
	var detailLines []string
	for i, team := range teamsData {
		detailLines = append(detailLines, fmt.Sprintf("%d. %s", placements[i], strings.Join(blocks(team), ", ")))
	}
	detailed = strings.Join(detailLines, "\n")
	return detailed, summary
}

func teamNames(team []PlayerRecord) []string {
	out := make([]string, len(team))
	for i, p := range team {
		out[i] = escapeName(p.Name)
	}
	return out
}

func blocks(team []PlayerRecord) []string {
	out := make([]string, len(team))
	for i, p := range team {
		out[i] = playerBlock(p)
	}
	return out
}

// FormatLeaderboard renders one line per ranked player: "{rank}. {name}
// ({round(display_rating)}, σ = {σ:.2})" (spec §4.5 "Leaderboard refresh").
func FormatLeaderboard(players []PlayerRecord) []string {
	lines := make([]string, len(players))
	for i, p := range players {
		lines[i] = fmt.Sprintf("%d. %s (%.0f, σ = %.2f)", i+1, escapeName(p.Name), math.Round(p.DisplayRating), p.RatingDeviation)
	}
	return lines
}

// utf16Len returns the UTF-16 code-unit length of s, the unit Discord's
// 2000-character message cap is measured in.
func utf16Len(s string) int {
	return len(utf16.Encode([]rune(s)))
}

// SplitMessages partitions lines into as few messages as possible while
// keeping each message at or under maxUnits UTF-16 code units (spec §4.5).
func SplitMessages(lines []string, maxUnits int) []string {
	var out []string
	var current strings.Builder
	currentLen := 0

	flush := func() {
		if current.Len() > 0 {
			out = append(out, current.String())
			current.Reset()
			currentLen = 0
		}
	}

	for _, line := range lines {
		lineLen := utf16Len(line)
		sep := 0
		if currentLen > 0 {
			sep = 1 // "\n"
		}
		if currentLen+sep+lineLen > maxUnits {
			flush()
			sep = 0
		}
		if currentLen > 0 {
			current.WriteByte('\n')
			currentLen++
		}
		current.WriteString(line)
		currentLen += lineLen
	}
	flush()
	return out
}
