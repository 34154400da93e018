package ports

// Clicker plays one short click, now.
type Clicker interface {
	Click() error
}

// ClickerFunc adapts a function to Clicker.
type ClickerFunc func() error

func (f ClickerFunc) Click() error {
	return f()
}
