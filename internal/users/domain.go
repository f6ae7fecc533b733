package users

// Account roles as stored in the role table. INACTIVE accounts cannot log
// in or act.
const (
	RoleUser     = "USER1"
	RoleAdmin    = "ADMIN"
	RoleInactive = "INACTIVE"
)

// Privacy levels: 0 shows everything, 1 hides the username from public
// listings, 2 hides all account data.
const (
	PrivacyPublic   = 0
	PrivacyHideName = 1
	PrivacyHideAll  = 2
)

// User is one kiosk account. Credential hashes never serialize.
type User struct {
	UserID       int64  `json:"userId"`
	Username     string `json:"username"`
	FullName     string `json:"fullName"`
	Email        string `json:"email"`
	Balance      int64  `json:"moneyBalance"`
	Role         string `json:"role"`
	PrivacyLevel int    `json:"privacyLevel"`
	PasswordHash string `json:"-"`
	RFIDHash     string `json:"-"`
}

// Registration describes a new account. Accounts start with role USER1 and
// a zero balance.
type Registration struct {
	Username string
	Password string
	FullName string
	Email    string
}

// Update carries optional account edits. Nil means "leave unchanged".
// Password and RFID arrive hashed; the service owns the hashing.
type Update struct {
	Username     *string
	FullName     *string
	Email        *string
	Role         *string
	PrivacyLevel *int
	PasswordHash *string
	RFIDHash     *string
}

// RFIDCredential pairs an account id with its stored RFID hash for lookup
// by comparison.
type RFIDCredential struct {
	UserID   int64
	RFIDHash string
}
