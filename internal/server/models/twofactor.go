package models

import (
	"time"

	"github.com/dmitrijs2005/gophvault/internal/cryptox"
)

// TwoFactorMethodTOTP is the only supported method.
const TwoFactorMethodTOTP = "totp"

// TwoFactorSecret stores the encrypted TOTP seed and the encrypted set of
// unused recovery codes.
type TwoFactorSecret struct {
	UserID                 string
	Method                 string
	EncryptedSecret        *cryptox.EncryptedField
	EncryptedRecoveryCodes *cryptox.EncryptedField
	IsEnabled              bool
	IsVerified             bool
	CreatedAt              time.Time
	UpdatedAt              time.Time
}
