package domain

// Transaction kinds, statuses and payment methods as stored in the record store.
const (
	TxKindActivation  = "activation"
	TxKindWithdrawal  = "withdrawal"
	TxKindAdminCredit = "admin_credit"

	TxStatusPending  = "pending"
	TxStatusApproved = "approved"
	TxStatusRejected = "rejected"

	MethodBkash = "bkash"
	MethodNagad = "nagad"
	MethodAdmin = "admin"

	RoleUser  = "user"
	RoleAdmin = "admin"
)

// DefaultTerminatorCodes end upward referral resolution without paying anyone.
// MAXPOWER2024 is the master onboarding code; ADMIN marks house accounts.
var DefaultTerminatorCodes = []string{"ADMIN", "MAXPOWER2024"}

// ValidTxKind reports whether kind is a known transaction kind.
func ValidTxKind(kind string) bool {
	switch kind {
	case TxKindActivation, TxKindWithdrawal, TxKindAdminCredit:
		return true
	}
	return false
}

// ValidMethod reports whether method is a supported payment channel.
func ValidMethod(method string) bool {
	switch method {
	case MethodBkash, MethodNagad, MethodAdmin:
		return true
	}
	return false
}
