package handler

import (
	"context"
	"fmt"
	"strings"

	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/model"
	"casino-bot/internal/rank"
	"casino-bot/internal/service"
)

const leaderboardSize = 10

// RankingHandler handles rank and leaderboard commands.
type RankingHandler struct {
	accounts *service.AccountService
	ranks    *service.RankService
}

// NewRankingHandler creates a new RankingHandler.
func NewRankingHandler(accounts *service.AccountService, ranks *service.RankService) *RankingHandler {
	return &RankingHandler{accounts: accounts, ranks: ranks}
}

// HandleRank handles the /rank command.
func (h *RankingHandler) HandleRank(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	info, err := h.ranks.PlayerInfo(context.Background(), playerID(sender))
	if err != nil {
		return replyError(c, "rank", err)
	}
	return c.Reply(formatRank(info))
}

// HandleTop handles the /top command.
func (h *RankingHandler) HandleTop(c tele.Context) error {
	top, err := h.accounts.Leaderboard(context.Background(), leaderboardSize)
	if err != nil {
		return replyError(c, "top", err)
	}
	return c.Reply(formatLeaderboard(top))
}

func rankTitle(r rank.Rank, level int) string {
	name := string(r)
	if name != "" {
		name = strings.ToUpper(name[:1]) + name[1:]
	}
	return fmt.Sprintf("%s %d", name, level)
}

func formatRank(info rank.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎖 %s\n", rankTitle(info.Rank, info.Level))
	fmt.Fprintf(&b, "🏆 Wins: %d\n", info.TotalWins)
	if info.Max {
		b.WriteString("⭐ Top of the ladder")
		return b.String()
	}
	fmt.Fprintf(&b, "📈 Progress: %.1f%% (%d more wins to %d)", info.ProgressPercent, info.WinsRequiredForNext, info.NextThreshold)
	return b.String()
}

// formatRankUp announces a rank-up and its reward.
func formatRankUp(c *service.RankChange) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("\n\n🎖 Rank up! %s → %s\n🎁 +%d coins · +%d gems",
		rankTitle(c.From.Rank, c.From.Level), rankTitle(c.To.Rank, c.To.Level), c.Reward.Coins, c.Reward.Gems)
}

func formatLeaderboard(top []model.LeaderboardEntry) string {
	if len(top) == 0 {
		return "📊 No players yet"
	}

	medals := []string{"🥇", "🥈", "🥉"}
	var b strings.Builder
	fmt.Fprintf(&b, "🏆 Top %d by wins\n━━━━━━━━━━━━━━━\n", leaderboardSize)
	for i, e := range top {
		pos := fmt.Sprintf("%d.", i+1)
		if i < len(medals) {
			pos = medals[i]
		}
		name := e.Name
		if name == "" {
			name = "User" + e.PlayerID
		}
		fmt.Fprintf(&b, "%s %s: %d wins (%s)\n", pos, name, e.TotalWins, rankTitle(e.Rank, e.RankLevel))
	}
	b.WriteString("━━━━━━━━━━━━━━━")
	return b.String()
}
