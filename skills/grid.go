package skills

import "fmt"

// SlotCount is the number of inventory slots.
const SlotCount = 28

// Grid maps inventory slots to window-relative pixels.
type Grid struct {
	OriginX    int `mapstructure:"origin_x"`
	OriginY    int `mapstructure:"origin_y"`
	SlotWidth  int `mapstructure:"slot_width"`
	SlotHeight int `mapstructure:"slot_height"`
	Columns    int `mapstructure:"columns"`
}

// DefaultGrid is the fixed-mode inventory of a 765x503 client.
func DefaultGrid() Grid {
	return Grid{OriginX: 563, OriginY: 213, SlotWidth: 42, SlotHeight: 36, Columns: 4}
}

// Validate checks the grid dimensions.
func (g Grid) Validate() error {
	if g.SlotWidth <= 0 || g.SlotHeight <= 0 || g.Columns <= 0 {
		return fmt.Errorf("inventory grid needs positive slot size and columns, got %dx%d with %d columns",
			g.SlotWidth, g.SlotHeight, g.Columns)
	}
	return nil
}

// SlotCenter returns the window-relative centre of slot.
func (g Grid) SlotCenter(slot int) (x, y int, err error) {
	if slot < 0 || slot >= SlotCount {
		return 0, 0, fmt.Errorf("slot %d outside 0..%d", slot, SlotCount-1)
	}
	row, col := slot/g.Columns, slot%g.Columns
	x = g.OriginX + col*g.SlotWidth + g.SlotWidth/2
	y = g.OriginY + row*g.SlotHeight + g.SlotHeight/2
	return x, y, nil
}
