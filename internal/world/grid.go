// Package world provides the grid, resource nodes, and the stochastic
// environment agents forage and hunt in.
// Positions are integer cells; distance is Manhattan throughout.
package world

import "fmt"

// Pos is a cell on the square grid.
type Pos struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Add returns p offset by (dx, dy).
func (p Pos) Add(dx, dy int) Pos {
	return Pos{X: p.X + dx, Y: p.Y + dy}
}

func (p Pos) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Distance returns the Manhattan distance between two cells.
func Distance(a, b Pos) int {
	return abs(a.X-b.X) + abs(a.Y-b.Y)
}

// Bounds is the rectangular extent of the world, [0,Width) × [0,Height).
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p lies inside the bounds.
func (b Bounds) Contains(p Pos) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// Clamp pulls p onto the nearest in-bounds cell.
func (b Bounds) Clamp(p Pos) Pos {
	if p.X < 0 {
		p.X = 0
	}
	if p.Y < 0 {
		p.Y = 0
	}
	if p.X >= b.Width {
		p.X = b.Width - 1
	}
	if p.Y >= b.Height {
		p.Y = b.Height - 1
	}
	return p
}

// Cells returns the number of cells inside the bounds.
func (b Bounds) Cells() int {
	return b.Width * b.Height
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
