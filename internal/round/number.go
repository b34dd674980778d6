package round

// Number is the index of the current round.
// 0 indicates the output round, 1 is the first round.
type Number uint16
