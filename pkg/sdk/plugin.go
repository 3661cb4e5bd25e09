package sdk

// Plugin es un módulo que el host monta sobre una sesión. Init recibe el bus,
// el registro de capabilities y la config propia del módulo; Stop deshace
// todo lo que Init registró.
type Plugin interface {
	Init(ctx Context) error
	Stop() error
}
