package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// validate reports fields by their koanf key so messages match the YAML and
// APP_ environment names operators actually set.
var validate = newValidator()

// ErrLeaderboardTarget is returned when the leaderboard is enabled without a Discord target.
var ErrLeaderboardTarget = errors.New("leaderboard requires discord.bot_token and discord.leaderboard_channel_id")

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}

		return name
	})

	return v
}

// Validate checks the whole configuration. The service refuses to start on
// any failure, so every problem is reported at once.
func (c *Config) Validate() error {
	var problems []string

	var fieldErrs validator.ValidationErrors
	if err := validate.Struct(c); err != nil {
		if !errors.As(err, &fieldErrs) {
			return err
		}

		for _, fe := range fieldErrs {
			problems = append(problems, describe(fe))
		}
	}

	var cause error
	if c.Leaderboard.Enabled && (c.Discord.BotToken == "" || c.Discord.LeaderboardChannelID == "") {
		cause = ErrLeaderboardTarget
		problems = append(problems, ErrLeaderboardTarget.Error())
	}

	if len(problems) == 0 {
		return nil
	}

	msg := "config validation failed:\n  " + strings.Join(problems, "\n  ")
	if cause != nil {
		return &validationError{msg: msg, cause: cause}
	}

	return errors.New(msg)
}

type validationError struct {
	msg   string
	cause error
}

func (e *validationError) Error() string { return e.msg }
func (e *validationError) Unwrap() error { return e.cause }

func describe(fe validator.FieldError) string {
	key := keyPath(fe.Namespace())

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "required_if":
		return fmt.Sprintf("%s is required when %s", key, strings.ToLower(fe.Param()))
	case "min":
		return fmt.Sprintf("%s must be at least %s", key, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", key, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", key, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", key, fe.Param())
	case "url":
		return key + " must be a valid URL"
	case "numeric":
		return key + " must be numeric"
	default:
		return fmt.Sprintf("%s failed validation: %s", key, fe.Tag())
	}
}

// keyPath drops the root struct name: "Config.server.port" becomes "server.port".
func keyPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}

	return namespace
}
