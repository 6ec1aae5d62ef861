package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/service"
)

// TransferHandler handles coin transfers between players.
type TransferHandler struct {
	accounts *service.AccountService
	ledger   *service.LedgerService
}

// NewTransferHandler creates a new TransferHandler.
func NewTransferHandler(accounts *service.AccountService, ledger *service.LedgerService) *TransferHandler {
	return &TransferHandler{accounts: accounts, ledger: ledger}
}

// HandlePay handles /pay <amount>. The receiver is the author of the
// replied-to message or a user picked through a text mention, since
// Telegram offers no lookup by username.
func (h *TransferHandler) HandlePay(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /pay <amount> (reply to the receiver's message)")
	}
	amount, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	target := payTarget(c.Message())
	if target == nil || target.IsBot {
		return c.Reply("❌ Reply to a message from the player you want to pay")
	}

	ctx := context.Background()
	for _, u := range []*tele.User{sender, target} {
		if _, _, err := h.accounts.EnsurePlayer(ctx, playerID(u), displayName(u)); err != nil {
			return replyError(c, "pay", err)
		}
	}

	balance, err := h.ledger.Transfer(ctx, playerID(sender), playerID(target), amount)
	if err != nil {
		return replyError(c, "pay", err)
	}
	return c.Reply(fmt.Sprintf("✅ Sent %d coins to %s\n💰 Balance: %d", amount, displayName(target), balance))
}

func payTarget(m *tele.Message) *tele.User {
	if m == nil {
		return nil
	}
	if m.ReplyTo != nil && m.ReplyTo.Sender != nil {
		return m.ReplyTo.Sender
	}
	for _, e := range m.Entities {
		if e.Type == tele.EntityTMention && e.User != nil {
			return e.User
		}
	}
	return nil
}
