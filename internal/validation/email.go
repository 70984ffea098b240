package validation

import "net/mail"

// ValidEmail valida el formato con net/mail y rechaza formas con display
// name ("Foo <a@b>" no es un email de registro).
func ValidEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
