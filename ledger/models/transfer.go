package models

// TransferStatus is the outcome of a money transfer. A boolean cannot
// express the partially-applied state the document backend can end up in,
// so transfers report one of three states.
type TransferStatus string

const (
	// TransferCompleted means both the debit and the credit were applied.
	TransferCompleted TransferStatus = "completed"
	// TransferFailed means no funds moved.
	TransferFailed TransferStatus = "failed"
	// TransferPartiallyApplied means the source was debited but the credit
	// was not applied. Only the conditional-update backend can report this.
	TransferPartiallyApplied TransferStatus = "partially_applied"
)
