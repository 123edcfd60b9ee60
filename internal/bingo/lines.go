package bingo

// WinningCombinations are the 12 fixed 5-cell index sets over the 25
// board positions: five rows, five columns, two diagonals. Iteration
// order matters to the bot engine (first match wins), so keep the table
// row-major, then columns, then diagonals.
var WinningCombinations = [12][5]int{
	{0, 1, 2, 3, 4},
	{5, 6, 7, 8, 9},
	{10, 11, 12, 13, 14},
	{15, 16, 17, 18, 19},
	{20, 21, 22, 23, 24},
	{0, 5, 10, 15, 20},
	{1, 6, 11, 16, 21},
	{2, 7, 12, 17, 22},
	{3, 8, 13, 18, 23},
	{4, 9, 14, 19, 24},
	{0, 6, 12, 18, 24},
	{4, 8, 12, 16, 20},
}

// CalledSet converts a called-numbers log to a membership set. Win logic
// is set-membership only; the call order never matters here.
func CalledSet(called []int) map[int]bool {
	set := make(map[int]bool, len(called))
	for _, n := range called {
		set[n] = true
	}
	return set
}

// CountCompletedLines returns how many of the 12 winning combinations
// are fully covered by the called numbers, in [0,12]. A malformed board
// (wrong cardinality, unset cells, duplicate values) fails closed and
// counts zero lines.
func CountCompletedLines(board Board, called []int) int {
	if !board.Complete() || !distinct(board) {
		return 0
	}
	set := CalledSet(called)
	count := 0
	for _, combo := range WinningCombinations {
		complete := true
		for _, idx := range combo {
			if !set[board[idx]] {
				complete = false
				break
			}
		}
		if complete {
			count++
		}
	}
	return count
}

// HasWon reports whether the board meets the variant's win threshold.
// Never panics; malformed boards simply haven't won.
func HasWon(v Variant, board Board, called []int) bool {
	return CountCompletedLines(board, called) >= v.WinThreshold()
}

func distinct(board Board) bool {
	seen := make(map[int]bool, len(board))
	for _, n := range board {
		if seen[n] {
			return false
		}
		seen[n] = true
	}
	return true
}
