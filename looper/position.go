package looper

// Cell is a grid coordinate relative to a loop's first row.
type Cell struct {
	X, Y int
}

// PositionToGrid maps a playback position to the cell that displays it.
// Y wraps at 16 rows, the addressing limit of the hardware.
func PositionToGrid(length, position, rows, cols int) Cell {
	if length <= 0 || rows <= 0 || cols <= 0 {
		return Cell{}
	}

	// floor(position/length * cells), kept in integers so cell edges are exact.
	i := position * rows * cols / length

	return Cell{
		X: i % cols,
		Y: (i / cols) & 0x0F,
	}
}

// GridToPosition maps a cell back to a playback position: the cell's lower
// edge rounded up for forward loops, its upper edge rounded down for reverse
// loops. A reverse loop plays down from that edge, so its first frame is
// still inside the pressed cell.
func GridToPosition(length, x, y, rows, cols int, reverse bool) int {
	if length <= 0 || rows <= 0 || cols <= 0 {
		return 0
	}

	x &= 0x0F
	if reverse {
		x++
	}

	i := x + y*cols
	cells := rows * cols

	if reverse {
		return i * length / cells
	}
	return (i*length + cells - 1) / cells
}

// CellRegion returns the [start, end) frame range covered by the cells
// between a and b inclusive, in whichever order they were pressed.
func CellRegion(length int, a, b Cell, rows, cols int) (start, end int) {
	ia := a.X + a.Y*cols
	ib := b.X + b.Y*cols
	if ib < ia {
		ia, ib = ib, ia
	}

	start = GridToPosition(length, ia%cols, ia/cols, rows, cols, false)
	end = GridToPosition(length, (ib+1)%cols, (ib+1)/cols, rows, cols, false)
	if end > length {
		end = length
	}
	return start, end
}
