// Package handler provides Telegram bot command handlers. Handlers parse
// arguments, call one service operation and format the reply.
package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/game"
	"casino-bot/internal/model"
	"casino-bot/internal/pkg/lock"
	"casino-bot/internal/repository"
	"casino-bot/internal/service"
)

// playerID maps a Telegram user to a player id.
func playerID(u *tele.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func displayName(u *tele.User) string {
	switch {
	case u.Username != "":
		return "@" + u.Username
	case u.FirstName != "":
		return u.FirstName
	default:
		return fmt.Sprintf("User%d", u.ID)
	}
}

// parseAmount parses a strictly positive integer argument.
func parseAmount(arg string) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("%q is not a positive whole number", arg)
	}
	return n, nil
}

// errorText turns an expected failure into a reply. Unexpected errors get a
// generic text and are logged by the caller.
func errorText(err error) (string, bool) {
	switch {
	case errors.Is(err, model.ErrInsufficientFunds):
		return "❌ Insufficient balance", true
	case errors.Is(err, model.ErrInvalidAmount):
		return "❌ Invalid amount", true
	case errors.Is(err, model.ErrSelfTransfer):
		return "❌ You cannot send coins to yourself", true
	case errors.Is(err, game.ErrBetOutOfRange):
		return "❌ Bet out of range: " + detail(err), true
	case errors.Is(err, game.ErrInvalidConfiguration):
		return "🚧 This game is not available right now", true
	case errors.Is(err, game.ErrInvalidAction):
		return "❌ Invalid move: " + detail(err), true
	case errors.Is(err, game.ErrInvalidState):
		return "❌ Not allowed now: " + detail(err), true
	case errors.Is(err, game.ErrSessionNotFound):
		return "❌ No active game. Start one first", true
	case errors.Is(err, service.ErrNotSessionOwner):
		return "❌ That game belongs to someone else", true
	case errors.Is(err, repository.ErrPlayerNotFound):
		return "❌ Unknown player. Send /start first", true
	case errors.Is(err, model.ErrCodeNotFound):
		return "❌ No such code", true
	case errors.Is(err, model.ErrCodeExpired):
		return "⏰ This code has expired", true
	case errors.Is(err, model.ErrCodeInactive):
		return "❌ This code is disabled", true
	case errors.Is(err, model.ErrUsageLimitReached):
		return "❌ This code has been fully claimed", true
	case errors.Is(err, model.ErrAlreadyRedeemed):
		return "❌ You already redeemed this code", true
	case errors.Is(err, model.ErrInvalidRedeemCode):
		return "❌ Invalid code: " + detail(err), true
	case errors.Is(err, repository.ErrCodeExists):
		return "❌ A code with that name already exists", true
	case errors.Is(err, model.ErrUnknownCurrency):
		return "❌ Currency must be coins or gems", true
	case errors.Is(err, game.ErrUnknownGame):
		return "❌ Unknown game", true
	case errors.Is(err, lock.ErrLockTimeout):
		return "⏳ Busy, please try again", true
	}
	return "❌ Something went wrong, please try again later", false
}

// detail strips the sentinel prefix from a wrapped error message.
func detail(err error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, ": "); i >= 0 {
		return msg[i+2:]
	}
	return msg
}

// replyError answers c with the text for err.
func replyError(c tele.Context, op string, err error) error {
	text, expected := errorText(err)
	if !expected {
		ev := log.Error().Err(err).Str("op", op)
		if s := c.Sender(); s != nil {
			ev = ev.Int64("user_id", s.ID)
		}
		ev.Msg("Handler failed")
	}
	return c.Reply(text)
}
