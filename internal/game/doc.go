// Package game implements the bingo game state machine.
//
// A Game is a JSON document held in a synchronized store and observed by
// several independent processes (each player's client, the bot driver,
// the server's timeout driver). There is no in-process authority: every
// transition is a pure rule function that takes a decoded snapshot plus
// an action and returns a field-level store.Update. Observers apply the
// update and then recompute everything from the next snapshot they
// receive, never from what they think they just wrote.
//
// Because the store merges field ops without multi-field transactions,
// the rules are written to converge under races: the called-numbers log
// grows only through append-if-absent union ops, so two observers that
// both believe it is their turn and call the same number collapse into
// a single append, and any derived state (winner, turn holder, draw) is
// recomputed from the authoritative log.
package game
