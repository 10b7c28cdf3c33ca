package geom

// Dimensions is an object's body size in cells. Both sides are at least 1
// once Checked.
type Dimensions struct {
	Width  int
	Height int
}

func Dims(w, h int) Dimensions { return Dimensions{Width: w, Height: h}.Checked() }

func (d Dimensions) Checked() Dimensions {
	if d.Width < 1 {
		d.Width = 1
	}
	if d.Height < 1 {
		d.Height = 1
	}
	return d
}

func (d Dimensions) ToArray() [2]int { return [2]int{d.Width, d.Height} }

// Rotate swaps width and height.
func (d Dimensions) Rotate() Dimensions { return Dimensions{Width: d.Height, Height: d.Width} }

// Along returns the number of node slots available on side s.
func (d Dimensions) Along(s Side) int {
	if s == Left || s == Right {
		return d.Height
	}
	return d.Width
}

// Grow widens (Left/Right) or heightens (Top/Bottom) by one cell.
func (d Dimensions) Grow(s Side) Dimensions {
	if s == Left || s == Right {
		d.Width++
	} else {
		d.Height++
	}
	return d.Checked()
}

// Shrink is the inverse of Grow with a floor of 1.
func (d Dimensions) Shrink(s Side) Dimensions {
	if s == Left || s == Right {
		d.Width--
	} else {
		d.Height--
	}
	return d.Checked()
}
