package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/game"
	"casino-bot/internal/rng"
	"casino-bot/internal/service"
)

// GameHandler handles game commands and the inline buttons of running
// sessions. Cells and blocks are numbered from 1 in chat and from 0 in the
// engine.
type GameHandler struct {
	accounts *service.AccountService
	games    *service.GameService
}

// NewGameHandler creates a new GameHandler.
func NewGameHandler(accounts *service.AccountService, games *service.GameService) *GameHandler {
	return &GameHandler{accounts: accounts, games: games}
}

// HandleCoinflip handles /coinflip <bet> <heads|tails>.
func (h *GameHandler) HandleCoinflip(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /coinflip <bet> <heads|tails>\nExample: /coinflip 100 heads")
	}
	bet, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	side, ok := parseSide(args[1])
	if !ok {
		return c.Reply("❌ Pick heads or tails")
	}

	res, err := h.start(sender, game.Coinflip, bet, game.Params{Side: side})
	if err != nil {
		return replyError(c, "coinflip", err)
	}
	return c.Reply(coinflipText(displayName(sender), res))
}

// HandleMines handles /mines <bet> <mines>.
func (h *GameHandler) HandleMines(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 2 {
		return c.Reply("❌ Usage: /mines <bet> <mines>\nExample: /mines 100 3")
	}
	bet, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}
	mines, err := parseAmount(args[1])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	if busy, err := h.games.HasActiveSession(context.Background(), playerID(sender), game.Mines); err != nil {
		return replyError(c, "mines", err)
	} else if busy {
		return c.Reply("❌ Finish your current mines game first (/reveal or /cashout mines)")
	}

	res, err := h.start(sender, game.Mines, bet, game.Params{MineCount: int(mines)})
	if err != nil {
		return replyError(c, "mines", err)
	}
	text := fmt.Sprintf("💣 Mines started with %d mines. Bet %d\n%s\nTap a cell or use /reveal <cell>\n💰 Balance: %d",
		mines, bet, renderMines(res.Session), res.Balance)
	return reply(c, text, minesKeyboard(res.Session))
}

// HandleReveal handles /reveal <cell> on the active mines game.
func (h *GameHandler) HandleReveal(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /reveal <cell>")
	}
	cell, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	ctx := context.Background()
	sess, err := h.games.ActiveSession(ctx, playerID(sender), game.Mines)
	if err != nil {
		return replyError(c, "reveal", err)
	}
	res, err := h.games.ApplyAction(ctx, playerID(sender), sess.ID, game.Reveal{Cell: int(cell) - 1})
	if err != nil {
		return replyError(c, "reveal", err)
	}
	return reply(c, revealText(res, int(cell)), minesKeyboard(res.Session))
}

// HandleTower handles /tower <bet>.
func (h *GameHandler) HandleTower(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /tower <bet>\nExample: /tower 100")
	}
	bet, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	if busy, err := h.games.HasActiveSession(context.Background(), playerID(sender), game.Tower); err != nil {
		return replyError(c, "tower", err)
	} else if busy {
		return c.Reply("❌ Finish your current tower game first (/pick or /cashout tower)")
	}

	res, err := h.start(sender, game.Tower, bet, game.Params{})
	if err != nil {
		return replyError(c, "tower", err)
	}
	p := res.Session.Progress.(*game.TowerProgress)
	text := fmt.Sprintf("🗼 Tower started. Bet %d\n%s\nTap a block or use /pick <1-%d>\n💰 Balance: %d",
		bet, renderTower(res.Session), p.BlocksPerLevel, res.Balance)
	return reply(c, text, towerKeyboard(res.Session))
}

// HandlePick handles /pick <block> on the current floor of the active tower.
func (h *GameHandler) HandlePick(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	args := c.Args()
	if len(args) < 1 {
		return c.Reply("❌ Usage: /pick <block>")
	}
	block, err := parseAmount(args[0])
	if err != nil {
		return c.Reply("❌ " + err.Error())
	}

	ctx := context.Background()
	sess, err := h.games.ActiveSession(ctx, playerID(sender), game.Tower)
	if err != nil {
		return replyError(c, "pick", err)
	}
	res, level, err := h.pick(ctx, playerID(sender), sess, int(block)-1)
	if err != nil {
		return replyError(c, "pick", err)
	}
	return reply(c, pickText(res, level), towerKeyboard(res.Session))
}

// HandleCashOut handles /cashout [mines|tower]. Without an argument the
// first active game is cashed out.
func (h *GameHandler) HandleCashOut(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	types := []game.Type{game.Mines, game.Tower}
	if args := c.Args(); len(args) > 0 {
		t, err := game.ParseType(args[0])
		if err != nil || t == game.Coinflip {
			return c.Reply("❌ Usage: /cashout <mines|tower>")
		}
		types = []game.Type{t}
	}

	ctx := context.Background()
	id := playerID(sender)
	for _, t := range types {
		sess, err := h.games.ActiveSession(ctx, id, t)
		if err != nil {
			continue
		}
		res, err := h.games.CashOut(ctx, id, sess.ID)
		if err != nil {
			return replyError(c, "cashout", err)
		}
		return c.Reply(cashOutText(res))
	}
	return replyError(c, "cashout", game.ErrSessionNotFound)
}

// HandleCallback handles taps on session buttons. The message is edited in
// place; errors are shown as an alert.
func (h *GameHandler) HandleCallback(c tele.Context) error {
	cb := c.Callback()
	sender := c.Sender()
	if cb == nil || sender == nil {
		return nil
	}

	data, ok := DecodeCallback(cb.Data)
	if !ok {
		return c.Respond(&tele.CallbackResponse{Text: "❌ Invalid action"})
	}

	ctx := context.Background()
	id := playerID(sender)

	var (
		text   string
		markup *tele.ReplyMarkup
	)
	switch data.Action {
	case actionReveal:
		res, err := h.games.ApplyAction(ctx, id, data.SessionID, game.Reveal{Cell: data.Arg})
		if err != nil {
			return respondError(c, err)
		}
		text, markup = revealText(res, data.Arg+1), minesKeyboard(res.Session)
	case actionPick:
		sess, err := h.games.GetSession(ctx, id, data.SessionID)
		if err != nil {
			return respondError(c, err)
		}
		res, level, err := h.pick(ctx, id, sess, data.Arg)
		if err != nil {
			return respondError(c, err)
		}
		text, markup = pickText(res, level), towerKeyboard(res.Session)
	case actionCashOut:
		res, err := h.games.CashOut(ctx, id, data.SessionID)
		if err != nil {
			return respondError(c, err)
		}
		text = cashOutText(res)
	}

	var err error
	if markup != nil {
		err = c.Edit(text, markup)
	} else {
		err = c.Edit(text)
	}
	if err != nil {
		return err
	}
	return c.Respond()
}

// start makes sure the sender has an account and opens a session.
func (h *GameHandler) start(sender *tele.User, t game.Type, bet int64, params game.Params) (*service.SessionResult, error) {
	ctx := context.Background()
	if _, _, err := h.accounts.EnsurePlayer(ctx, playerID(sender), displayName(sender)); err != nil {
		return nil, err
	}
	return h.games.CreateSession(ctx, playerID(sender), t, bet, params)
}

// pick selects block on the current floor of sess and returns that floor.
func (h *GameHandler) pick(ctx context.Context, id string, sess *game.Session, block int) (*service.SessionResult, int, error) {
	p, ok := sess.Progress.(*game.TowerProgress)
	if !ok {
		return nil, 0, fmt.Errorf("%w: %s is not a tower session", game.ErrInvalidState, sess.ID)
	}
	level := p.CurrentLevel
	res, err := h.games.ApplyAction(ctx, id, sess.ID, game.SelectBlock{Level: level, Block: block})
	return res, level, err
}

func reply(c tele.Context, text string, markup *tele.ReplyMarkup) error {
	if markup == nil {
		return c.Reply(text)
	}
	return c.Reply(text, markup)
}

func respondError(c tele.Context, err error) error {
	text, expected := errorText(err)
	if !expected {
		return replyError(c, "callback", err)
	}
	return c.Respond(&tele.CallbackResponse{Text: text, ShowAlert: true})
}

func parseSide(s string) (rng.Side, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "heads", "head", "h":
		return rng.Heads, true
	case "tails", "tail", "t":
		return rng.Tails, true
	}
	return "", false
}

func coinflipText(name string, res *service.SessionResult) string {
	sess := res.Session
	p := sess.Progress.(*game.CoinflipProgress)
	msg := fmt.Sprintf("🪙 %s bet %d on %s\nThe coin shows %s\n", name, sess.Bet, p.Choice, p.Outcome)
	if sess.Status == game.StatusWon {
		msg += fmt.Sprintf("🎉 You win %d coins!", sess.Payout)
	} else {
		msg += fmt.Sprintf("😢 You lose %d coins", sess.Bet)
	}
	return msg + fmt.Sprintf("\n💰 Balance: %d", res.Balance) + formatRankUp(res.RankChange)
}

func revealText(res *service.SessionResult, cell int) string {
	sess := res.Session
	board := renderMines(sess)
	switch sess.Status {
	case game.StatusLost:
		return fmt.Sprintf("💥 Boom! Cell %d was a mine. You lose %d coins\n%s\n💰 Balance: %d", cell, sess.Bet, board, res.Balance)
	case game.StatusWon:
		return fmt.Sprintf("🏆 Board cleared! You win %d coins\n%s\n💰 Balance: %d%s", sess.Payout, board, res.Balance, formatRankUp(res.RankChange))
	}
	return fmt.Sprintf("💎 Safe! Multiplier x%s (cash out for %d)\n%s",
		sess.Multiplier.StringFixed(2), game.ComputePayout(sess.Bet, sess.Multiplier), board)
}

func pickText(res *service.SessionResult, level int) string {
	sess := res.Session
	board := renderTower(sess)
	switch sess.Status {
	case game.StatusLost:
		return fmt.Sprintf("💥 Wrong block! You lose %d coins\n%s\n💰 Balance: %d", sess.Bet, board, res.Balance)
	case game.StatusWon:
		return fmt.Sprintf("🏆 Top floor! You win %d coins\n%s\n💰 Balance: %d%s", sess.Payout, board, res.Balance, formatRankUp(res.RankChange))
	}
	return fmt.Sprintf("✅ Floor %d cleared! Multiplier x%s (cash out for %d)\n%s",
		level+1, sess.Multiplier.StringFixed(2), game.ComputePayout(sess.Bet, sess.Multiplier), board)
}

func cashOutText(res *service.SessionResult) string {
	sess := res.Session
	return fmt.Sprintf("💰 Cashed out %s at x%s: +%d coins\n%s\n💰 Balance: %d%s",
		sess.Type, sess.Multiplier.StringFixed(2), sess.Payout, renderBoard(sess), res.Balance, formatRankUp(res.RankChange))
}

func renderBoard(sess *game.Session) string {
	if sess.Type == game.Tower {
		return renderTower(sess)
	}
	return renderMines(sess)
}

// renderMines draws the grid row by row. Mines are shown once the game is over.
func renderMines(sess *game.Session) string {
	p, ok := sess.Progress.(*game.MinesProgress)
	if !ok {
		return ""
	}

	cols := gridColumns(p.GridSize)
	var b strings.Builder
	for cell := 0; cell < p.GridSize; cell++ {
		switch {
		case sess.Status.Terminal() && p.IsMine(cell):
			b.WriteString("💣")
		case lo.Contains(p.Revealed, cell):
			b.WriteString("💎")
		default:
			b.WriteString("⬜")
		}
		if (cell+1)%cols == 0 && cell < p.GridSize-1 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// renderTower draws floors top-down with the player's picks.
func renderTower(sess *game.Session) string {
	p, ok := sess.Progress.(*game.TowerProgress)
	if !ok {
		return ""
	}

	var b strings.Builder
	for level := p.LevelCount() - 1; level >= 0; level-- {
		fmt.Fprintf(&b, "%d. ", level+1)
		for block := 0; block < p.BlocksPerLevel; block++ {
			picked := level < len(p.Picks) && p.Picks[level] == block
			switch {
			case picked && block == p.Correct[level]:
				b.WriteString("✅")
			case picked:
				b.WriteString("💥")
			case sess.Status.Terminal() && block == p.Correct[level]:
				b.WriteString("🟩")
			default:
				b.WriteString("⬜")
			}
		}
		fmt.Fprintf(&b, " x%s", p.Multipliers[level].StringFixed(2))
		if level == p.CurrentLevel && !sess.Status.Terminal() {
			b.WriteString(" ⬅")
		}
		if level > 0 {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
