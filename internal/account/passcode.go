package account

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// PasscodeAlphabet is the 34-symbol passcode alphabet: uppercase letters
// and digits minus the visually ambiguous O and 0.
const PasscodeAlphabet = "ABCDEFGHIJKLMNPQRSTUVWXYZ123456789"

// PasscodeLength is the fixed passcode length.
const PasscodeLength = 8

// GeneratePasscode returns a uniformly random passcode. Codes are not
// checked for collision against other pending accounts: at 34^8
// combinations the probability is negligible, and Redeem matches a
// single row deterministically either way.
func GeneratePasscode() (string, error) {
	max := big.NewInt(int64(len(PasscodeAlphabet)))
	buf := make([]byte, PasscodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("account: generate passcode: %w", err)
		}
		buf[i] = PasscodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
