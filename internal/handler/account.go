package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/model"
	"casino-bot/internal/service"
)

// AccountHandler handles account-related commands.
type AccountHandler struct {
	accounts     *service.AccountService
	ledger       *service.LedgerService
	historyLimit int
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts *service.AccountService, ledger *service.LedgerService, historyLimit int) *AccountHandler {
	return &AccountHandler{
		accounts:     accounts,
		ledger:       ledger,
		historyLimit: historyLimit,
	}
}

// ensure creates the sender's account on first contact.
func (h *AccountHandler) ensure(ctx context.Context, u *tele.User) (*model.Player, bool, error) {
	return h.accounts.EnsurePlayer(ctx, playerID(u), displayName(u))
}

// HandleStart handles the /start command.
func (h *AccountHandler) HandleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	p, created, err := h.ensure(context.Background(), sender)
	if err != nil {
		return replyError(c, "start", err)
	}

	if created {
		return c.Reply(fmt.Sprintf(
			"🎉 Welcome %s!\n\n"+
				"Your account is ready with %d coins and %d gems.\n\n"+
				"Commands:\n"+
				"/balance - your balance\n"+
				"/rank - your rank\n"+
				"/coinflip <bet> <heads|tails>\n"+
				"/mines <bet> <mines>, then /reveal <cell>\n"+
				"/tower <bet>, then /pick <block>\n"+
				"/cashout <mines|tower>\n"+
				"/redeem <code>\n"+
				"/pay <amount> (reply to a message)\n"+
				"/top - leaderboard\n"+
				"/history - recent balance changes",
			displayName(sender), p.Coins, p.Gems,
		))
	}

	return c.Reply(fmt.Sprintf("👋 Welcome back %s!\n\n💰 %d coins · 💎 %d gems", displayName(sender), p.Coins, p.Gems))
}

// HandleBalance handles the /balance command.
func (h *AccountHandler) HandleBalance(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	p, _, err := h.ensure(context.Background(), sender)
	if err != nil {
		return replyError(c, "balance", err)
	}
	return c.Reply(fmt.Sprintf("💰 %d coins · 💎 %d gems", p.Coins, p.Gems))
}

// HandleHistory handles the /history command.
func (h *AccountHandler) HandleHistory(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	list, err := h.ledger.History(context.Background(), playerID(sender), h.historyLimit)
	if err != nil {
		return replyError(c, "history", err)
	}
	return c.Reply(formatHistory(list))
}

func formatHistory(list []*model.Transaction) string {
	if len(list) == 0 {
		return "📜 No balance changes yet"
	}

	var b strings.Builder
	b.WriteString("📜 Recent balance changes\n━━━━━━━━━━━━━━━\n")
	for _, tx := range list {
		icon := "💰"
		if tx.Currency == model.Gems {
			icon = "💎"
		}
		fmt.Fprintf(&b, "%s %+d %s → %d (%s)\n", icon, tx.Amount, tx.Currency, tx.Balance, tx.Type)
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}
