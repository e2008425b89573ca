// Package balance is the ledger's balance engine.
//
// It shapes new expenses and settlements into transaction records and folds
// the full record history into a netted debt matrix. Everything here is a
// pure function of its arguments: no I/O, no clocks, no shared state. The
// caller persists the records it gets back and re-reads the history to see
// their effect.
//
// A positive amount for participant p in a record authored by actor a
// always means "p owes a". Settlements reuse that rule: a payer settling
// with a receiver writes a record where the receiver owes the payer, which
// cancels the original debt when pairs are netted.
package balance
