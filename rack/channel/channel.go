// Package channel defines the two audio channels of the module and the
// masks used to address one or both of them.
package channel

// Channel identifies one physical audio channel.
type Channel uint8

const (
	Left Channel = iota
	Right
)

// Mask returns the single-channel mask for c.
func (c Channel) Mask() Mask {
	switch c {
	case Left:
		return MaskLeft
	case Right:
		return MaskRight
	default:
		return MaskNone
	}
}

func (c Channel) String() string {
	switch c {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "invalid"
	}
}

// Mask is a bit set over channels. Only the four named values are valid.
type Mask uint8

const (
	MaskNone  Mask = 0
	MaskLeft  Mask = 1 << Left
	MaskRight Mask = 1 << Right
	MaskBoth       = MaskLeft | MaskRight
)

// Valid reports whether m is one of None, Left, Right or Both.
func (m Mask) Valid() bool {
	return m <= MaskBoth
}

// Has reports whether m includes channel c.
func (m Mask) Has(c Channel) bool {
	return m&c.Mask() != 0
}

// Overlaps reports whether m and o share at least one channel.
func (m Mask) Overlaps(o Mask) bool {
	return m&o != 0
}

var maskChannels = [...][]Channel{
	MaskNone:  nil,
	MaskLeft:  {Left},
	MaskRight: {Right},
	MaskBoth:  {Left, Right},
}

// Channels returns the channels contained in m in Left, Right order. The
// slice is shared and must not be modified; it does not allocate, so
// Process implementations may range over it.
func (m Mask) Channels() []Channel {
	if !m.Valid() {
		return nil
	}
	return maskChannels[m]
}

func (m Mask) String() string {
	switch m {
	case MaskNone:
		return "none"
	case MaskLeft:
		return "left"
	case MaskRight:
		return "right"
	case MaskBoth:
		return "both"
	default:
		return "invalid"
	}
}

// ParseMask converts the names produced by Mask.String back into a mask.
func ParseMask(s string) (Mask, bool) {
	switch s {
	case "none", "":
		return MaskNone, true
	case "left", "l":
		return MaskLeft, true
	case "right", "r":
		return MaskRight, true
	case "both", "stereo":
		return MaskBoth, true
	default:
		return MaskNone, false
	}
}
