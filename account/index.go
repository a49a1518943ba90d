package account

import "strings"

// gatewayPrefix is prepended by the payment gateway to references it echoes
// back on statement lines, e.g. "ORD-500" comes back as "pay-ord-500".
const gatewayPrefix = "pay-"

// Index maps normalized payment references to the account expecting them.
// It is built exclusively from the trusted internal side; statement
// references are only ever looked up, never registered.
type Index struct {
	entries map[string]Handle
}

// NewIndex builds a reference index over the given pending accounts. Each
// account is registered under its bare reference and under the
// gateway-decorated variant so echoed references still resolve. Later
// registrations do not displace earlier ones.
func NewIndex(invoices []Invoice, orders []Order) *Index {
	idx := &Index{entries: make(map[string]Handle, 2*(len(invoices)+len(orders)))}
	for _, inv := range invoices {
		idx.register(inv.Number, HandleForInvoice(inv))
		if inv.PaymentReference != nil && *inv.PaymentReference != "" {
			idx.register(*inv.PaymentReference, HandleForInvoice(inv))
		}
	}
	for _, ord := range orders {
		idx.register(ord.Number, HandleForOrder(ord))
		if ord.PaymentReference != nil && *ord.PaymentReference != "" {
			idx.register(*ord.PaymentReference, HandleForOrder(ord))
		}
	}
	return idx
}

func (i *Index) register(reference string, h Handle) {
	key := Normalize(reference)
	if key == "" {
		return
	}
	if _, exists := i.entries[key]; !exists {
		i.entries[key] = h
	}
	decorated := gatewayPrefix + key
	if _, exists := i.entries[decorated]; !exists {
		i.entries[decorated] = h
	}
}

// Lookup resolves a statement reference by exact match on the normalized key.
// The second return reports whether the reference is known; a miss is a
// benign outcome for callers to count, not an error.
func (i *Index) Lookup(reference string) (Handle, bool) {
	h, ok := i.entries[Normalize(reference)]
	return h, ok
}

// Len reports how many distinct keys are registered.
func (i *Index) Len() int {
	return len(i.entries)
}

// Normalize lower-cases and trims a reference for index keys.
func Normalize(reference string) string {
	return strings.ToLower(strings.TrimSpace(reference))
}
