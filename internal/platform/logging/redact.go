package logging

import (
	"log/slog"
	"regexp"

	"github.com/m-mizutani/masq"
)

var (
	// Authorization header values sent to Discord and by inbound callers.
	authHeaderPattern = regexp.MustCompile(`(?i)^(bot|bearer|basic)\s+\S+`)

	// Postgres URLs carrying a password, e.g. postgres://quotes:hunter2@db/quotes.
	dsnURLPattern = regexp.MustCompile(`(?i)^postgres(ql)?://[^:/@]+:[^@]+@`)

	// Keyword DSNs, e.g. "host=db user=quotes password=hunter2".
	dsnKeywordPattern = regexp.MustCompile(`(?i)\bpassword=\S+`)
)

// DefaultRedactOptions lists the attribute names and value shapes that never
// reach a log line: Discord bot tokens, inbound credentials and database DSNs.
func DefaultRedactOptions() []masq.Option {
	return []masq.Option{
		masq.WithFieldName("password"),
		masq.WithFieldName("token"),
		masq.WithFieldName("bot_token"),
		masq.WithFieldName("BotToken"),
		masq.WithFieldName("authorization"),
		masq.WithFieldName("Authorization"),
		masq.WithFieldName("cookie"),
		masq.WithFieldName("dsn"),
		masq.WithFieldName("DSN"),
		masq.WithFieldPrefix("secret"),

		masq.WithRegex(authHeaderPattern),
		masq.WithRegex(dsnURLPattern),
		masq.WithRegex(dsnKeywordPattern),
	}
}

// NewReplaceAttr returns a slog ReplaceAttr that redacts using
// DefaultRedactOptions plus any extra options.
func NewReplaceAttr(extra ...masq.Option) func(groups []string, a slog.Attr) slog.Attr {
	return masq.New(append(DefaultRedactOptions(), extra...)...)
}
