package notifier

import (
	"fmt"
	"strings"
	"time"

	"github.com/dikaprio01/BongoBot/internal/catalog"
	"github.com/dikaprio01/BongoBot/internal/engine"
	"github.com/dikaprio01/BongoBot/internal/model"
)

// FormatProfile formats an account snapshot into a Telegram message.
func FormatProfile(s *engine.AccountSnapshot, now time.Time) string {
	var b strings.Builder
	a := s.Account

	name := a.Username
	if name == "" {
		name = fmt.Sprintf("citizen %d", a.ID)
	}
	b.WriteString(fmt.Sprintf("👤 <b>%s</b>\n\n", name))
	b.WriteString(fmt.Sprintf("💵 Cash: %d$\n", a.Cash))
	b.WriteString(fmt.Sprintf("🏦 Bank: %d$\n", a.Bank))
	b.WriteString(fmt.Sprintf("💼 Job level: %d\n", a.JobLevel))
	if s.TotalDebt > 0 {
		b.WriteString(fmt.Sprintf("📉 Debt: %d$ (%d loans)\n", s.TotalDebt, len(s.Loans)))
	}
	if len(s.Businesses) > 0 {
		b.WriteString(fmt.Sprintf("🏭 Businesses: %d\n", len(s.Businesses)))
	}
	if a.Arrested(now) {
		b.WriteString(fmt.Sprintf("🚔 Jailed for another %s\n", a.ArrestUntil.Sub(now).Round(time.Second)))
	}
	if a.IsPresident {
		b.WriteString("🦅 President in office\n")
	}
	b.WriteString(fmt.Sprintf("\n🏛 Tax: %.0f%% | Loan rate: %.0f%%/day | Treasury: %d$",
		s.TaxRate*100, s.LoanRate*100, s.Treasury))
	return b.String()
}

// FormatBusinesses formats an account's holdings for display.
func FormatBusinesses(bizs []*model.OwnedBusiness, cat *catalog.Catalog, now time.Time, cycle time.Duration) string {
	if len(bizs) == 0 {
		return "🏭 You own no businesses yet. Use /buy to get one."
	}
	var b strings.Builder
	b.WriteString("🏭 <b>Your businesses</b>\n\n")
	for _, biz := range bizs {
		bt, ok := cat.Business(biz.TypeID)
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("#%d %s ×%d (lvl %d)\n", biz.ID, bt.Name, biz.Count, biz.Level))
		b.WriteString(fmt.Sprintf("   stock: %d units", biz.Stock))
		switch biz.State {
		case model.ProductionReady:
			b.WriteString(" | ✅ ready to collect\n")
		case model.ProductionProducing:
			if biz.StartedAt != nil {
				left := biz.StartedAt.Add(cycle).Sub(now)
				if left < 0 {
					left = 0
				}
				b.WriteString(fmt.Sprintf(" | ⏳ producing, %s left\n", left.Round(time.Minute)))
			} else {
				b.WriteString(" | ⏳ producing\n")
			}
		default:
			b.WriteString(fmt.Sprintf(" | 💤 idle, needs %d units\n", bt.UnitsPerCycle))
		}
	}
	return b.String()
}

// FormatLoans formats an account's active loans.
func FormatLoans(loans []*model.Loan, now time.Time, cycle time.Duration) string {
	if len(loans) == 0 {
		return "🏦 You have no active loans."
	}
	var b strings.Builder
	b.WriteString("🏦 <b>Your loans</b>\n\n")
	for _, l := range loans {
		b.WriteString(fmt.Sprintf("#%d: %d$ at %.0f%%/day, due %s\n",
			l.ID, l.Principal, l.Rate*100, l.DueAt.Format("2006-01-02")))
		b.WriteString(fmt.Sprintf("   payoff today: %d$\n", l.TotalDue(now, cycle)))
	}
	b.WriteString("\nRepay with /repay &lt;loan id&gt;")
	return b.String()
}

// FormatMarket formats the current market prices and business catalog.
func FormatMarket(prices []*model.MarketPrice, cat *catalog.Catalog) string {
	var b strings.Builder
	b.WriteString("📈 <b>Market</b>\n\n")
	for _, p := range prices {
		item, ok := cat.Item(p.ItemID)
		if !ok {
			continue
		}
		b.WriteString(fmt.Sprintf("%s: %d$/unit\n", item.Name, p.Price))
	}
	b.WriteString("\n🏗 <b>For sale</b>\n")
	for _, bt := range cat.BusinessList() {
		b.WriteString(fmt.Sprintf("/buy %d — %s, %d$ (%d units per cycle)\n",
			bt.ID, bt.Name, bt.Cost, bt.UnitsPerCycle))
	}
	return b.String()
}

// FormatElection formats the election standings.
func FormatElection(elec *model.ElectionState, cands []*model.Candidate, now time.Time) string {
	var b strings.Builder
	b.WriteString("🗳 <b>Election</b>\n\n")
	switch elec.Phase {
	case model.PhaseCandidacy:
		b.WriteString("Candidacy is open — run with /run\n")
	case model.PhaseVoting:
		b.WriteString("Voting is open — vote with /vote &lt;candidate id&gt;\n")
	default:
		b.WriteString("No election running.\n")
	}
	if elec.PhaseEndsAt != nil {
		left := elec.PhaseEndsAt.Sub(now)
		if left < 0 {
			left = 0
		}
		b.WriteString(fmt.Sprintf("Phase ends in %s\n", left.Round(time.Minute)))
	}
	if len(cands) > 0 {
		b.WriteString("\n<b>Candidates</b>\n")
		for _, c := range cands {
			b.WriteString(fmt.Sprintf("  %d — %d votes\n", c.AccountID, c.Votes))
		}
	}
	if elec.PresidentID != nil {
		b.WriteString(fmt.Sprintf("\nCurrent president: %d", *elec.PresidentID))
	}
	return b.String()
}
