package fdc

// OpenFunc constructs a Controller for the given drive number once a
// matching adapter has been located.
type OpenFunc func(drive int) (Controller, error)

// Registration pairs an adapter's identification with how to open it,
// mirroring the teacher's VID/PID adapter registry (adapter/registry.go)
// but keyed to the two concrete fdc.Controller transports.
type Registration struct {
	Name string
	Open OpenFunc
}

var registered []Registration

// Register adds a named Controller constructor to the registry. Concrete
// transport packages (serialfdc, usbfdc) call this from an init function.
func Register(name string, open OpenFunc) {
	registered = append(registered, Registration{Name: name, Open: open})
}

// Registered returns the known adapter registrations, in registration
// order.
func Registered() []Registration {
	return append([]Registration(nil), registered...)
}
