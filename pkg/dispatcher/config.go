package dispatcher

// DefaultHistoryWindow is the number of prior messages supplied to the
// classifier and to the medium/complex tiers when Config.HistoryWindow is
// left unset.
const DefaultHistoryWindow = 10
