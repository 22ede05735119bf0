// Package backtest simulates sentiment driven trading strategies over
// historical prices and measures how they would have performed.
//
// The core functionalities include:
//   - Signal generation: a pure function turning a daily sentiment series and
//     a price series into BUY, SELL or HOLD signals with a position size.
//   - Walk-forward execution: a day by day simulation of a cash and
//     positions ledger, with slippage, commission, an optional risk-free
//     accrual on cash and an open-position cap. Orders decided on a day fill
//     at the next day's open so that no decision ever uses future prices.
//   - Performance metrics: return, risk and benchmark relative statistics
//     computed from daily return series.
//   - Results: an immutable Result and its serialisable Payload, persisted by
//     the store package.
//
// This package serves as the foundational logic for the `btx` command-line
// tool. Data acquisition is not part of it: prices and sentiment reach the
// engine through the Loader interface.
package backtest
