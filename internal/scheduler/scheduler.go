package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/config"
	"github.com/dikaprio01/BongoBot/internal/engine"
	"github.com/dikaprio01/BongoBot/internal/model"
	"github.com/dikaprio01/BongoBot/internal/notifier"
	"github.com/dikaprio01/BongoBot/internal/recorder"
	"github.com/dikaprio01/BongoBot/internal/store"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the periodic sweep and dispatches inbound user commands to
// the engine.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   *engine.Engine
	Store    *store.Store
	Catalog  *catalog.Catalog
	Eco      config.Economy
	Recorder recorder.Recorder
	Ctx      context.Context
}

// NewScheduler creates a new Scheduler.
func NewScheduler(ctx context.Context, eng *engine.Engine, st *store.Store, cat *catalog.Catalog, eco config.Economy, rec recorder.Recorder) *Scheduler {
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Store:    st,
		Catalog:  cat,
		Eco:      eco,
		Recorder: rec,
		Ctx:      ctx,
	}
}

// RegisterAll registers the sweep task.
func (s *Scheduler) RegisterAll(sweepCron string) error {
	if _, err := s.Cron.AddFunc(sweepCron, s.sweepTask); err != nil {
		return fmt.Errorf("register sweep task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Println("[INFO] scheduler started")
}

// Stop stops the cron scheduler gracefully.
func (s *Scheduler) Stop() {
	s.Cron.Stop()
	log.Println("[INFO] scheduler stopped")
}

// RunSweepNow executes the sweep immediately (for manual trigger / RUN_ON_START).
func (s *Scheduler) RunSweepNow() {
	s.sweepTask()
}

func (s *Scheduler) sweepTask() {
	log.Println("[INFO] running sweep")
	start := time.Now()
	s.Engine.Sweep(s.Ctx, start)
	if err := s.Recorder.RecordSweep(&recorder.SweepEvent{
		DurationMs: time.Since(start).Milliseconds(),
	}); err != nil {
		log.Printf("[ERROR] record sweep: %v", err)
	}
}

// HandleCommand processes one user command and returns the reply text.
func (s *Scheduler) HandleCommand(userID int64, username, command string) string {
	now := time.Now()
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	cmd := strings.ToLower(fields[0])
	args := fields[1:]

	if err := s.Recorder.RecordCommand(&recorder.CommandEvent{AccountID: userID, Command: cmd}); err != nil {
		log.Printf("[ERROR] record command: %v", err)
	}

	if _, err := s.Engine.GetOrCreateAccount(s.Ctx, userID, username, now); err != nil {
		return replyErr(err)
	}

	switch cmd {
	case "/start", "/help":
		return helpText

	case "/profile", "/me":
		snap, err := s.Engine.GetAccountSnapshot(s.Ctx, userID, now)
		if err != nil {
			return replyErr(err)
		}
		return notifier.FormatProfile(snap, now)

	case "/work":
		return s.timedAction(userID, model.ActionWork, now)
	case "/daily":
		return s.timedAction(userID, model.ActionDaily, now)
	case "/crime":
		return s.timedAction(userID, model.ActionCrime, now)

	case "/deposit":
		amount, ok := argInt(args, 0)
		if !ok {
			return "Usage: /deposit amount"
		}
		if err := s.Engine.Deposit(s.Ctx, userID, amount); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏦 Deposited %d$.", amount)

	case "/withdraw":
		amount, ok := argInt(args, 0)
		if !ok {
			return "Usage: /withdraw amount"
		}
		if err := s.Engine.Withdraw(s.Ctx, userID, amount); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("💵 Withdrew %d$.", amount)

	case "/transfer", "/pay":
		target, ok1 := argInt(args, 0)
		amount, ok2 := argInt(args, 1)
		if !ok1 || !ok2 {
			return "Usage: /pay user_id amount"
		}
		if err := s.Engine.Transfer(s.Ctx, userID, target, amount); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("💸 Sent %d$ to %d.", amount, target)

	case "/bet", "/casino":
		bet, ok := argInt(args, 0)
		if !ok {
			return fmt.Sprintf("Usage: /bet amount (min %d$)", s.Eco.CasinoMinBet)
		}
		res, err := s.Engine.PlaceBet(s.Ctx, userID, bet, now)
		if err != nil {
			return replyErr(err)
		}
		if res.Delta >= 0 {
			return fmt.Sprintf("🎰 ×%.1f — you won %d$! Cash: %d$", res.Multiplier, res.Delta, res.Cash)
		}
		return fmt.Sprintf("🎰 ×%.1f — you lost %d$. Cash: %d$", res.Multiplier, -res.Delta, res.Cash)

	case "/market":
		prices, err := s.Store.Prices(s.Ctx)
		if err != nil {
			return replyErr(err)
		}
		return notifier.FormatMarket(prices, s.Catalog)

	case "/buy":
		typeID, ok := argInt(args, 0)
		if !ok {
			return "Usage: /buy type_id (see /market)"
		}
		b, err := s.Engine.BuyBusiness(s.Ctx, userID, int(typeID))
		if err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏗 Bought! You now hold %d of this business (id #%d). Stock it with /stock %d units.",
			b.Count, b.ID, b.ID)

	case "/stock":
		bizID, ok1 := argInt(args, 0)
		units, ok2 := argInt(args, 1)
		if !ok1 || !ok2 {
			return "Usage: /stock business_id units"
		}
		res, err := s.Engine.DepositResource(s.Ctx, userID, bizID, units, now)
		if err != nil {
			return replyErr(err)
		}
		reply := fmt.Sprintf("📦 Bought %d units at %d$ each (%d$ total). Stock: %d.",
			res.Units, res.UnitPrice, res.Cost, res.Stock)
		if res.Started {
			reply += " ⏳ Production started."
		}
		return reply

	case "/collect":
		res, err := s.Engine.CollectProduction(s.Ctx, userID, now)
		if err != nil {
			return replyErr(err)
		}
		if res.Collected == 0 {
			return "Nothing is ready to collect yet."
		}
		return fmt.Sprintf("💰 Collected %d$ (tax %d$, net %d$) from %d businesses.",
			res.Gross, res.Tax, res.Net, res.Collected)

	case "/upgrade":
		bizID, ok := argInt(args, 0)
		if !ok {
			return "Usage: /upgrade business_id"
		}
		res, err := s.Engine.UpgradeBusiness(s.Ctx, userID, bizID)
		if err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("⬆️ Upgraded to level %d for %d$. Payout per cycle: %d$.",
			res.Level, res.Cost, res.NextPayout)

	case "/businesses", "/biz":
		bizs, err := s.Store.Businesses(s.Ctx, userID)
		if err != nil {
			return replyErr(err)
		}
		return notifier.FormatBusinesses(bizs, s.Catalog, now, s.Eco.ProductionCycle())

	case "/borrow":
		amount, ok1 := argInt(args, 0)
		days, ok2 := argInt(args, 1)
		if !ok1 || !ok2 {
			return fmt.Sprintf("Usage: /borrow amount days(7-30) (min %d$)", s.Eco.LoanMin)
		}
		l, err := s.Engine.Borrow(s.Ctx, userID, amount, int(days), now)
		if err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏦 Loan #%d issued: %d$ at %.0f%%/day, due %s. The money is in your bank account.",
			l.ID, l.Principal, l.Rate*100, l.DueAt.Format("2006-01-02"))

	case "/repay":
		loanID, ok := argInt(args, 0)
		if !ok {
			return "Usage: /repay loan_id (see /loans)"
		}
		res, err := s.Engine.Repay(s.Ctx, userID, loanID, now)
		if err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("✅ Loan repaid: %d$ (%d$ interest). Bank: %d$.", res.Total, res.Interest, res.Bank)

	case "/loans":
		loans, err := s.Store.ActiveLoans(s.Ctx, userID)
		if err != nil {
			return replyErr(err)
		}
		return notifier.FormatLoans(loans, now, s.Eco.LoanCycle())

	case "/election":
		elec, cands, err := s.Engine.Standings(s.Ctx)
		if err != nil {
			return replyErr(err)
		}
		return notifier.FormatElection(elec, cands, now)

	case "/run":
		if err := s.Engine.RegisterCandidate(s.Ctx, userID); err != nil {
			return replyErr(err)
		}
		return "🗳 You are on the ballot. Good luck."

	case "/vote":
		candID, ok := argInt(args, 0)
		if !ok {
			return "Usage: /vote candidate_id (see /election)"
		}
		if err := s.Engine.CastVote(s.Ctx, userID, candID, now); err != nil {
			return replyErr(err)
		}
		return "🗳 Vote counted."

	case "/settax":
		pct, ok := argInt(args, 0)
		if !ok {
			return "Usage: /settax percent"
		}
		if err := s.Engine.SetTaxRate(s.Ctx, userID, int(pct)); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏛 Production tax set to %d%%.", pct)

	case "/setloan":
		pct, ok := argInt(args, 0)
		if !ok {
			return "Usage: /setloan percent"
		}
		if err := s.Engine.SetLoanRate(s.Ctx, userID, int(pct)); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏛 Loan rate set to %d%%/day.", pct)

	case "/spend":
		target, ok1 := argInt(args, 0)
		amount, ok2 := argInt(args, 1)
		if !ok1 || !ok2 {
			return "Usage: /spend user_id amount"
		}
		if err := s.Engine.SpendTreasury(s.Ctx, userID, target, amount); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🏛 Paid %d$ from the treasury to %d.", amount, target)

	case "/startelection":
		if err := s.Engine.StartElection(s.Ctx, userID, now); err != nil {
			return replyErr(err)
		}
		return "🗳 Candidacy window is open. Register with /run."

	case "/grant":
		target, ok1 := argInt(args, 0)
		amount, ok2 := argInt(args, 1)
		if !ok1 || !ok2 {
			return "Usage: /grant user_id amount"
		}
		if err := s.Engine.AdminGrant(s.Ctx, userID, target, amount); err != nil {
			return replyErr(err)
		}
		return fmt.Sprintf("🎁 Granted %d$ to %d.", amount, target)

	case "/ban", "/unban":
		target, ok := argInt(args, 0)
		if !ok {
			return fmt.Sprintf("Usage: %s user_id", cmd)
		}
		if err := s.Engine.AdminSetBanned(s.Ctx, userID, target, cmd == "/ban"); err != nil {
			return replyErr(err)
		}
		return "Done."

	default:
		return "Unknown command. Try /help."
	}
}

func (s *Scheduler) timedAction(userID int64, kind model.ActionKind, now time.Time) string {
	res, err := s.Engine.PerformTimedAction(s.Ctx, userID, kind, now)
	if err != nil {
		return replyErr(err)
	}
	switch kind {
	case model.ActionWork:
		return fmt.Sprintf("💼 You worked and earned %d$. Cash: %d$", res.Reward, res.Cash)
	case model.ActionDaily:
		return fmt.Sprintf("🎁 Daily bonus: %d$. Cash: %d$", res.Reward, res.Cash)
	default:
		if res.Success {
			return fmt.Sprintf("🕶 The heist paid off: +%d$. Cash: %d$", res.Reward, res.Cash)
		}
		return fmt.Sprintf("🚔 Caught! Fined %d$ and jailed until %s. Cash: %d$",
			res.Fine, res.ArrestUntil.Format("15:04"), res.Cash)
	}
}

func argInt(args []string, i int) (int64, bool) {
	if i >= len(args) {
		return 0, false
	}
	v, err := strconv.ParseInt(args[i], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// replyErr maps engine errors to user-facing replies.
func replyErr(err error) string {
	var cd *engine.CooldownError
	if errors.As(err, &cd) {
		return fmt.Sprintf("⏳ Not yet — try again in %s.", cd.Remaining.Round(time.Second))
	}
	var ar *engine.ArrestedError
	if errors.As(err, &ar) {
		return fmt.Sprintf("🚔 You are in jail for another %s.", ar.Remaining.Round(time.Second))
	}
	switch {
	case errors.Is(err, engine.ErrInsufficientFunds):
		return "💸 Not enough money."
	case errors.Is(err, engine.ErrTooManyActiveLoans):
		return "🏦 You already have too many active loans."
	case errors.Is(err, engine.ErrAmountOutOfRange):
		return "🤔 That amount is out of range."
	case errors.Is(err, engine.ErrMaxLevelReached):
		return "⬆️ Already at max level."
	case errors.Is(err, engine.ErrNotFound):
		return "🤷 Nothing by that id."
	case errors.Is(err, engine.ErrPermissionDenied):
		return "🚫 You can't do that."
	case errors.Is(err, engine.ErrAlreadyRegistered):
		return "🗳 You are already on the ballot."
	case errors.Is(err, engine.ErrAlreadyVoted):
		return "🗳 You already voted this election."
	case errors.Is(err, engine.ErrInvalidPhase):
		return "🗳 The election is not in that phase right now."
	case errors.Is(err, engine.ErrStorageUnavailable):
		log.Printf("[ERROR] storage: %v", err)
		return "⚠️ Temporary hiccup, nothing was changed. Try again."
	default:
		log.Printf("[ERROR] command: %v", err)
		return "⚠️ Something went wrong."
	}
}

const helpText = `🏙 <b>BongoCity</b>

💰 Money
/profile — your account
/work, /daily, /crime — earn (on cooldowns)
/deposit, /withdraw, /pay — move money
/bet amount — casino

🏭 Business
/market — prices and catalog
/buy, /stock, /collect, /upgrade, /biz

🏦 Bank
/borrow amount days, /repay id, /loans

🗳 Politics
/election, /run, /vote id
/settax, /setloan, /spend - president only`
