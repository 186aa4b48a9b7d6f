// Package market holds the price table model shared by the extractor, the
// combiner and the notifiers: trade dates, records, tables and the city
// whitelist filter.
package market
