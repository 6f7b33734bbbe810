package domain

import "strings"

// RateKey é a identidade composta de uma checagem de cota.
// Nunca é persistida como objeto; só a forma string vive no store.
type RateKey struct {
	Subject   string
	Action    Action
	Tier      Tier
	Namespace string
}

// String monta "[namespace:]tier:action:subject".
func (k RateKey) String() string {
	var b strings.Builder
	if k.Namespace != "" {
		b.WriteString(k.Namespace)
		b.WriteByte(':')
	}
	b.WriteString(string(k.Tier))
	b.WriteByte(':')
	b.WriteString(string(k.Action))
	b.WriteByte(':')
	b.WriteString(k.Subject)
	return b.String()
}
