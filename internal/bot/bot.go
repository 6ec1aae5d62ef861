// Package bot provides the Telegram bot initialization and handler registration.
package bot

import (
	"fmt"

	"github.com/rs/zerolog/log"
	tele "gopkg.in/telebot.v3"

	"casino-bot/internal/config"
	"casino-bot/internal/handler"
	"casino-bot/internal/service"
)

// Bot wraps the telebot instance with application dependencies.
type Bot struct {
	bot   *tele.Bot
	cfg   *config.Config
	users *PrivateUsers

	accountHandler  *handler.AccountHandler
	transferHandler *handler.TransferHandler
	adminHandler    *handler.AdminHandler
	rankingHandler  *handler.RankingHandler
	gameHandler     *handler.GameHandler
	redeemHandler   *handler.RedeemHandler
}

// Dependencies holds all the dependencies needed by the bot handlers.
type Dependencies struct {
	Config   *config.Config
	Accounts *service.AccountService
	Ledger   *service.LedgerService
	Games    *service.GameService
	Ranks    *service.RankService
	Redeem   *service.RedeemService
}

// New creates a new Bot instance with the given dependencies.
func New(deps *Dependencies) (*Bot, error) {
	if deps.Config.Bot.Token == "" {
		return nil, fmt.Errorf("bot token is required")
	}

	pref := tele.Settings{
		Token:  deps.Config.Bot.Token,
		Poller: &tele.LongPoller{Timeout: deps.Config.Bot.PollTimeout},
	}

	teleBot, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := &Bot{
		bot:   teleBot,
		cfg:   deps.Config,
		users: NewPrivateUsers(),

		accountHandler:  handler.NewAccountHandler(deps.Accounts, deps.Ledger, deps.Config.Player.HistoryLimit),
		transferHandler: handler.NewTransferHandler(deps.Accounts, deps.Ledger),
		adminHandler:    handler.NewAdminHandler(deps.Accounts, deps.Ranks, deps.Redeem),
		rankingHandler:  handler.NewRankingHandler(deps.Accounts, deps.Ranks),
		gameHandler:     handler.NewGameHandler(deps.Accounts, deps.Games),
		redeemHandler:   handler.NewRedeemHandler(deps.Accounts, deps.Redeem),
	}

	b.registerMiddleware()
	b.registerHandlers()

	return b, nil
}

// registerMiddleware registers all middleware. Recovery goes first so it
// also covers panics in the other middleware.
func (b *Bot) registerMiddleware() {
	b.bot.Use(RecoveryMiddleware())
	b.bot.Use(WhitelistMiddleware(b.cfg, b.users))
	b.bot.Use(LoggingMiddleware())
}

// registerHandlers registers all command and callback handlers.
func (b *Bot) registerHandlers() {
	// Account
	b.bot.Handle("/start", b.accountHandler.HandleStart)
	b.bot.Handle("/balance", b.accountHandler.HandleBalance)
	b.bot.Handle("/history", b.accountHandler.HandleHistory)
	b.bot.Handle("/pay", b.transferHandler.HandlePay)

	// Ranking
	b.bot.Handle("/rank", b.rankingHandler.HandleRank)
	b.bot.Handle("/top", b.rankingHandler.HandleTop)

	// Games
	b.bot.Handle("/coinflip", b.gameHandler.HandleCoinflip)
	b.bot.Handle("/mines", b.gameHandler.HandleMines)
	b.bot.Handle("/reveal", b.gameHandler.HandleReveal)
	b.bot.Handle("/tower", b.gameHandler.HandleTower)
	b.bot.Handle("/pick", b.gameHandler.HandlePick)
	b.bot.Handle("/cashout", b.gameHandler.HandleCashOut)
	b.bot.Handle(tele.OnCallback, b.gameHandler.HandleCallback)

	b.bot.Handle("/redeem", b.redeemHandler.HandleRedeem)

	// Admin
	adminGroup := b.bot.Group()
	adminGroup.Use(AdminMiddleware(b.cfg))
	adminGroup.Handle("/grant", b.adminHandler.HandleGrant)
	adminGroup.Handle("/addwins", b.adminHandler.HandleAddWins)
	adminGroup.Handle("/code_new", b.adminHandler.HandleCodeNew)
	adminGroup.Handle("/code_on", b.adminHandler.HandleCodeOn)
	adminGroup.Handle("/code_off", b.adminHandler.HandleCodeOff)
	adminGroup.Handle("/codes", b.adminHandler.HandleCodes)
}

// Start starts the bot polling. It blocks until Stop is called.
func (b *Bot) Start() {
	log.Info().Str("username", b.bot.Me.Username).Msg("Starting bot...")
	b.bot.Start()
}

// Stop stops the bot gracefully.
func (b *Bot) Stop() {
	log.Info().Msg("Stopping bot...")
	b.bot.Stop()
}
