package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/samber/lo"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/game"
)

// CallbackPrefix marks inline buttons that act on a game session.
const CallbackPrefix = "game_"

// Callback actions.
const (
	actionReveal  = "reveal"
	actionPick    = "pick"
	actionCashOut = "cashout"
)

// SessionCallback is the payload of a session button. Session ids are uuids,
// so they never contain the separator.
type SessionCallback struct {
	Action    string
	SessionID string
	Arg       int
}

// EncodeCallback encodes a session button into callback data.
func EncodeCallback(action, sessionID string, arg int) string {
	return fmt.Sprintf("%s%s_%s_%d", CallbackPrefix, action, sessionID, arg)
}

// DecodeCallback decodes callback data made by EncodeCallback. Telebot may
// prepend \f to the data.
func DecodeCallback(data string) (SessionCallback, bool) {
	data = strings.TrimPrefix(data, "\f")
	if !strings.HasPrefix(data, CallbackPrefix) {
		return SessionCallback{}, false
	}

	parts := strings.Split(strings.TrimPrefix(data, CallbackPrefix), "_")
	if len(parts) != 3 || parts[1] == "" {
		return SessionCallback{}, false
	}
	if !lo.Contains([]string{actionReveal, actionPick, actionCashOut}, parts[0]) {
		return SessionCallback{}, false
	}
	arg, err := strconv.Atoi(parts[2])
	if err != nil {
		return SessionCallback{}, false
	}
	return SessionCallback{Action: parts[0], SessionID: parts[1], Arg: arg}, true
}

// minesKeyboard lays the grid out as buttons plus a cash out row. Finished
// sessions get no keyboard.
func minesKeyboard(sess *game.Session) *tele.ReplyMarkup {
	p, ok := sess.Progress.(*game.MinesProgress)
	if !ok || sess.Status.Terminal() {
		return nil
	}

	cols := gridColumns(p.GridSize)
	markup := &tele.ReplyMarkup{}
	var row []tele.InlineButton
	for cell := 0; cell < p.GridSize; cell++ {
		text := strconv.Itoa(cell + 1)
		if lo.Contains(p.Revealed, cell) {
			text = "💎"
		}
		row = append(row, tele.InlineButton{Text: text, Data: EncodeCallback(actionReveal, sess.ID, cell)})
		if len(row) == cols {
			markup.InlineKeyboard = append(markup.InlineKeyboard, row)
			row = nil
		}
	}
	if len(row) > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, row)
	}
	if p.SafeRevealed() > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, cashOutRow(sess))
	}
	return markup
}

// towerKeyboard offers the blocks of the current floor.
func towerKeyboard(sess *game.Session) *tele.ReplyMarkup {
	p, ok := sess.Progress.(*game.TowerProgress)
	if !ok || sess.Status.Terminal() {
		return nil
	}

	row := make([]tele.InlineButton, 0, p.BlocksPerLevel)
	for block := 0; block < p.BlocksPerLevel; block++ {
		row = append(row, tele.InlineButton{
			Text: fmt.Sprintf("🧱 %d", block+1),
			Data: EncodeCallback(actionPick, sess.ID, block),
		})
	}

	markup := &tele.ReplyMarkup{InlineKeyboard: [][]tele.InlineButton{row}}
	if p.CurrentLevel > 0 {
		markup.InlineKeyboard = append(markup.InlineKeyboard, cashOutRow(sess))
	}
	return markup
}

func cashOutRow(sess *game.Session) []tele.InlineButton {
	return []tele.InlineButton{{
		Text: fmt.Sprintf("💰 Cash out x%s", sess.Multiplier.StringFixed(2)),
		Data: EncodeCallback(actionCashOut, sess.ID, 0),
	}}
}

// gridColumns is the side of a square grid, or 5 for other sizes. Telegram
// shows at most 8 buttons per row.
func gridColumns(gridSize int) int {
	for side := 1; side*side <= gridSize; side++ {
		if side*side == gridSize && side <= 8 {
			return side
		}
	}
	return 5
}
