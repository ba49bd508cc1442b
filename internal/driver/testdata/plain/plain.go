package plain

// No component declarations here; the generator leaves this package alone.

type Widget struct {
	ID string
}
