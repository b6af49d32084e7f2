package booking

// GSTPercent is the tax rate applied to the subtotal at invoice-render time.
// Tax is derived, never stored on the booking.
const GSTPercent = 8

// Invoice is the read-only financial view of a booking.
type Invoice struct {
	BookingID        string `json:"booking_id"`
	Subtotal         int64  `json:"subtotal"`
	PlatformFee      int64  `json:"platform_fee"`
	ProviderEarnings int64  `json:"provider_earnings"`
	Tax              int64  `json:"tax"`
	GrandTotal       int64  `json:"grand_total"`
	Currency         string `json:"currency"`
}

// ComputeInvoice derives the invoice for a booking. It never mutates the
// booking: subtotal and the fee split are the snapshotted values, tax and
// grand total are computed here.
func ComputeInvoice(b *Booking) Invoice {
	subtotal := b.TotalAmount()
	tax := subtotal * GSTPercent / 100
	return Invoice{
		BookingID:        b.ID().String(),
		Subtotal:         subtotal,
		PlatformFee:      b.PlatformFee(),
		ProviderEarnings: b.ProviderEarnings(),
		Tax:              tax,
		GrandTotal:       subtotal + tax,
		Currency:         b.Currency(),
	}
}
