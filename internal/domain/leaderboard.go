package domain

import (
	"strings"
	"unicode/utf8"
)

const (
	// LeaderboardMarker tags the published leaderboard so it can be
	// recognised again after a restart.
	LeaderboardMarker = "-# quote-book leaderboard"

	// DefaultLeaderboardSize is the number of quotes mirrored on the leaderboard.
	DefaultLeaderboardSize = 7

	// MaxMessageRunes is the longest message body the chat platform accepts.
	MaxMessageRunes = 2000

	leaderboardHeader = "## Top Quotes\n"
	truncationMark    = "…\n"
)

// Leaderboard is the top-N ranking by upvotes, best first.
type Leaderboard []RankedQuote

// Equal compares element-wise: same length and the same quote at every rank.
func (l Leaderboard) Equal(other Leaderboard) bool {
	if len(l) != len(other) {
		return false
	}

	for i := range l {
		if !l[i].Same(other[i]) {
			return false
		}
	}

	return true
}

// Render builds the published message body, ownership marker included,
// fitted to MaxMessageRunes. The result is exactly what gets published, so a
// message read back can be compared with it.
func (l Leaderboard) Render() string {
	var b strings.Builder

	b.WriteString(leaderboardHeader)

	for _, entry := range l {
		b.WriteString("**")
		b.WriteString(entry.Display())
		b.WriteString("**\n„")
		b.WriteString(entry.Content)
		b.WriteString("”\n")
	}

	b.WriteString(LeaderboardMarker)

	return FitMessage(b.String())
}

// Clone returns a copy that shares no backing array with l.
func (l Leaderboard) Clone() Leaderboard {
	if l == nil {
		return nil
	}

	return append(Leaderboard(nil), l...)
}

// IsOwnedArtifact reports whether message content carries the leaderboard marker.
func IsOwnedArtifact(content string) bool {
	return strings.Contains(content, LeaderboardMarker)
}

// FitMessage truncates content to MaxMessageRunes. A trailing leaderboard
// marker is kept so a truncated leaderboard is still recognised.
func FitMessage(content string) string {
	if utf8.RuneCountInString(content) <= MaxMessageRunes {
		return content
	}

	suffix := ""

	body := []rune(content)
	if strings.HasSuffix(content, LeaderboardMarker) {
		suffix = LeaderboardMarker
		body = []rune(content[:len(content)-len(suffix)])
	}

	keep := MaxMessageRunes - utf8.RuneCountInString(truncationMark) - utf8.RuneCountInString(suffix)

	return string(body[:keep]) + truncationMark + suffix
}
