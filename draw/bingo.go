package draw

import (
	"encoding/binary"

	"github.com/tolelom/drawchain/core"
)

// BallOrder returns the order in which balls 1..core.BingoBalls come out of
// the drum for a given random value.
func BallOrder(seed []byte) []int {
	s := NewStream(seed)
	order := make([]int, core.BingoBalls)
	for i := range order {
		order[i] = i + 1
	}
	for i := len(order) - 1; i > 0; i-- {
		j := s.Intn(i + 1)
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// CardLayout derives the numbers of a card. Column c holds distinct values
// from c*15+1..c*15+15; the centre square is free and stored as 0. The
// layout only needs to be unpredictable to the buyer, not to the operator,
// so entropy may be weak (block data).
func CardLayout(entropy []byte, roundID uint64, owner string, index uint32) [core.CardSize]uint8 {
	buf := make([]byte, 0, len(entropy)+len(owner)+12)
	buf = append(buf, entropy...)
	buf = binary.BigEndian.AppendUint64(buf, roundID)
	buf = append(buf, owner...)
	buf = binary.BigEndian.AppendUint32(buf, index)
	s := NewStream(buf)

	var nums [core.CardSize]uint8
	for col := 0; col < core.CardWidth; col++ {
		pool := make([]int, core.ColumnSpan)
		for i := range pool {
			pool[i] = col*core.ColumnSpan + i + 1
		}
		for row := 0; row < core.CardWidth; row++ {
			if row*core.CardWidth+col == core.CardCenter {
				continue
			}
			// partial Fisher-Yates: move a random remaining value to the end
			last := len(pool) - 1
			j := s.Intn(len(pool))
			pool[j], pool[last] = pool[last], pool[j]
			nums[row*core.CardWidth+col] = uint8(pool[last])
			pool = pool[:last]
		}
	}
	return nums
}

// Result is the outcome of a round as a resolver reports it.
type Result struct {
	LineBall     uint8
	LineWinners  []string
	BingoBall    uint8
	BingoWinners []string
}

// lines lists the 12 index sets that complete a line: rows, columns and
// both diagonals.
var lines = func() [][]int {
	var out [][]int
	for r := 0; r < core.CardWidth; r++ {
		row := make([]int, core.CardWidth)
		for c := range row {
			row[c] = r*core.CardWidth + c
		}
		out = append(out, row)
	}
	for c := 0; c < core.CardWidth; c++ {
		col := make([]int, core.CardWidth)
		for r := range col {
			col[r] = r*core.CardWidth + c
		}
		out = append(out, col)
	}
	diag, anti := make([]int, core.CardWidth), make([]int, core.CardWidth)
	for i := 0; i < core.CardWidth; i++ {
		diag[i] = i*core.CardWidth + i
		anti[i] = i*core.CardWidth + core.CardWidth - 1 - i
	}
	return append(out, diag, anti)
}()

// Evaluate finds, for the given ball order, the earliest ball at which any
// card completes a line and the earliest at which any card is full, and the
// owners of every card achieving each. Owners appear once per winning card,
// in card order.
func Evaluate(cards []core.Card, order []int) Result {
	var drawnAt [core.BingoBalls + 1]int
	for i, n := range order {
		if n >= 1 && n <= core.BingoBalls {
			drawnAt[n] = i + 1
		}
	}
	at := func(n uint8) int {
		if n == 0 {
			return 0 // free square
		}
		return drawnAt[n]
	}

	var res Result
	lineBest, bingoBest := 0, 0
	lineByCard := make([]int, len(cards))
	bingoByCard := make([]int, len(cards))
	for i, c := range cards {
		full := 0
		for _, n := range c.Numbers {
			full = max(full, at(n))
		}
		line := full
		for _, ln := range lines {
			done := 0
			for _, idx := range ln {
				done = max(done, at(c.Numbers[idx]))
			}
			line = min(line, done)
		}
		lineByCard[i], bingoByCard[i] = line, full
		if lineBest == 0 || line < lineBest {
			lineBest = line
		}
		if bingoBest == 0 || full < bingoBest {
			bingoBest = full
		}
	}
	if len(cards) == 0 {
		return res
	}
	res.LineBall, res.BingoBall = uint8(lineBest), uint8(bingoBest)
	for i, c := range cards {
		if lineByCard[i] == lineBest {
			res.LineWinners = append(res.LineWinners, c.Owner)
		}
		if bingoByCard[i] == bingoBest {
			res.BingoWinners = append(res.BingoWinners, c.Owner)
		}
	}
	return res
}
