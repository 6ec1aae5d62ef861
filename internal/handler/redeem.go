package handler

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/service"
)

// RedeemHandler handles redeem code claims.
type RedeemHandler struct {
	accounts *service.AccountService
	redeem   *service.RedeemService
}

// NewRedeemHandler creates a new RedeemHandler.
func NewRedeemHandler(accounts *service.AccountService, redeem *service.RedeemService) *RedeemHandler {
	return &RedeemHandler{accounts: accounts, redeem: redeem}
}

// HandleRedeem handles /redeem <code>.
func (h *RedeemHandler) HandleRedeem(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /redeem <code>")
	}

	ctx := context.Background()
	if _, _, err := h.accounts.EnsurePlayer(ctx, playerID(sender), displayName(sender)); err != nil {
		return replyError(c, "redeem", err)
	}

	res, err := h.redeem.Redeem(ctx, playerID(sender), args[0])
	if err != nil {
		return replyError(c, "redeem", err)
	}
	return c.Reply(fmt.Sprintf("🎁 Code %s redeemed!\n+%d coins · +%d gems\n💰 %d coins · 💎 %d gems",
		res.Code, res.Reward.Coins, res.Reward.Gems, res.After.Coins, res.After.Gems))
}
