package handler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/model"
	"casino-bot/internal/service"
)

// AdminHandler handles admin-only commands. Access is checked by the admin
// middleware before any of these run.
type AdminHandler struct {
	accounts *service.AccountService
	ranks    *service.RankService
	redeem   *service.RedeemService
	now      func() time.Time
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(accounts *service.AccountService, ranks *service.RankService, redeem *service.RedeemService) *AdminHandler {
	return &AdminHandler{
		accounts: accounts,
		ranks:    ranks,
		redeem:   redeem,
		now:      time.Now,
	}
}

// HandleGrant handles /grant <player_id> <coins|gems> <amount>. A negative
// amount removes balance.
func (h *AdminHandler) HandleGrant(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 3 {
		return c.Reply("❌ Usage: /grant <player_id> <coins|gems> <amount>\nExample: /grant 123456 coins -500")
	}
	target, err := parseUserID(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	currency, err := model.ParseCurrency(args[1])
	if err != nil {
		return replyError(c, "grant", err)
	}
	amount, err := strconv.ParseInt(strings.TrimSpace(args[2]), 10, 64)
	if err != nil {
		return c.Reply("❌ Amount must be a whole number")
	}

	balance, err := h.accounts.Grant(context.Background(), playerID(sender), target, currency, amount)
	if err != nil {
		return replyError(c, "grant", err)
	}
	return c.Reply(fmt.Sprintf("✅ %+d %s for %s\nNew balance: %d", amount, currency, target, balance))
}

// HandleAddWins handles /addwins <player_id> <n>, crediting every rank
// reward crossed on the way.
func (h *AdminHandler) HandleAddWins(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /addwins <player_id> <wins>")
	}
	target, err := parseUserID(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	n, err := parseAmount(args[1])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	change, err := h.ranks.RecordWins(context.Background(), target, n)
	if err != nil {
		return replyError(c, "addwins", err)
	}

	log.Info().
		Str("admin_id", playerID(sender)).
		Str("player_id", target).
		Int64("wins", n).
		Msg("Admin added wins")

	if change == nil {
		return c.Reply(fmt.Sprintf("✅ Added %d wins to %s (rank unchanged)", n, target))
	}
	return c.Reply(fmt.Sprintf("✅ Added %d wins to %s", n, target) + formatRankUp(change))
}

// HandleCodeNew handles /code_new <code> <coins> <gems> <max_uses> <hours>.
func (h *AdminHandler) HandleCodeNew(c tele.Context) error {
	args := c.Args()
	if len(args) < 5 {
		return c.Reply("❌ Usage: /code_new <code> <coins> <gems> <max_uses> <hours>\nExample: /code_new welcome 500 5 100 72")
	}

	nums := make([]int64, 4)
	for i, arg := range args[1:5] {
		n, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || n < 0 {
			return c.Reply(fmt.Sprintf("❌ %q is not a whole number", arg))
		}
		nums[i] = n
	}
	if nums[3] == 0 {
		return c.Reply("❌ Validity must be at least one hour")
	}

	reward := model.Reward{Coins: nums[0], Gems: nums[1]}
	expiresAt := h.now().UTC().Add(time.Duration(nums[3]) * time.Hour)
	code, err := h.redeem.CreateCode(context.Background(), args[0], reward, nums[2], expiresAt)
	if err != nil {
		return replyError(c, "code_new", err)
	}
	return c.Reply(fmt.Sprintf("✅ Code %s created\n%s", code.Code, formatCode(code)))
}

// HandleCodeOff handles /code_off <code>.
func (h *AdminHandler) HandleCodeOff(c tele.Context) error {
	return h.setActive(c, false)
}

// HandleCodeOn handles /code_on <code>.
func (h *AdminHandler) HandleCodeOn(c tele.Context) error {
	return h.setActive(c, true)
}

func (h *AdminHandler) setActive(c tele.Context, active bool) error {
	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /code_on <code> or /code_off <code>")
	}
	if err := h.redeem.SetActive(context.Background(), args[0], active); err != nil {
		return replyError(c, "code_toggle", err)
	}
	state := "disabled"
	if active {
		state = "enabled"
	}
	return c.Reply(fmt.Sprintf("✅ Code %s %s", model.NormalizeCode(args[0]), state))
}

// HandleCodes handles /codes.
func (h *AdminHandler) HandleCodes(c tele.Context) error {
	codes, err := h.redeem.ListCodes(context.Background())
	if err != nil {
		return replyError(c, "codes", err)
	}
	if len(codes) == 0 {
		return c.Reply("🎟 No codes yet")
	}

	var b strings.Builder
	b.WriteString("🎟 Redeem codes\n━━━━━━━━━━━━━━━\n")
	for _, code := range codes {
		fmt.Fprintf(&b, "%s: %s\n", code.Code, formatCode(code))
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return c.Reply(b.String())
}

func formatCode(c *model.RedeemCode) string {
	state := "on"
	if !c.IsActive {
		state = "off"
	}
	return fmt.Sprintf("%d coins · %d gems, used %d/%d, expires %s, %s",
		c.Reward.Coins, c.Reward.Gems, c.CurrentUses, c.MaxUses, c.ExpiresAt.UTC().Format("2006-01-02 15:04"), state)
}

// parseUserID validates a Telegram user id argument.
func parseUserID(arg string) (string, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Errorf("%q is not a valid user id", arg)
	}
	return strconv.FormatInt(id, 10), nil
}
