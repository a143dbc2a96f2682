package journal

import (
	"time"

	"github.com/rustyeddy/portfolio/ledger"
)

var t0 = time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

func sampleTrades() []ledger.Trade {
	buy := ledger.Trade{
		ID: "01HV000000000000000000BUY1", Ticker: "AAPL", Action: ledger.Buy, Status: ledger.Open,
		Shares: 100, Price: 150.25, Amount: 15025, Time: t0,
		StopLoss: 135.225, Target: 172.7875,
		Annotation: ledger.Annotation{Confidence: 8, Reasoning: "breakout, volume", Meta: map[string]string{"strategy": "scripted"}},
	}
	sell := ledger.Trade{
		ID: "01HV000000000000000000SEL1", EntryID: buy.ID, Ticker: "AAPL", Action: ledger.Sell, Status: ledger.Closed,
		Shares: 100, Price: 172.8, Amount: 17280, Time: t0.AddDate(0, 0, 4),
		PnL: 2255, PnLPct: 15.008319467554076, Reason: ledger.TargetReached,
		EntryTime: t0, EntryPrice: 150.25,
		Annotation: buy.Annotation,
	}
	return []ledger.Trade{buy, sell}
}

func sampleSnapshots() []ledger.Snapshot {
	return []ledger.Snapshot{
		{Time: t0, TotalValue: 100000, Cash: 84975, OpenPositions: 1, ReturnPct: 0},
		{Time: t0.AddDate(0, 0, 4), TotalValue: 102255, Cash: 102255, OpenPositions: 0, ReturnPct: 2.255},
	}
}
