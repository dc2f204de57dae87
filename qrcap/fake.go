package qrcap

// FakeGenerator is a deterministic stand-in for a real QR rasterizer: it
// accepts any payload up to MaxChars and rejects anything longer, mirroring
// how a real encoder rejects a symbol once it exceeds its chosen version's
// capacity. It has no dependency on an actual QR encoding library.
type FakeGenerator struct {
	MaxChars int
}

// Fits reports whether payload is within the fake's configured capacity.
func (g FakeGenerator) Fits(payload string) bool {
	if g.MaxChars <= 0 {
		return false
	}
	return len(payload) <= g.MaxChars
}
