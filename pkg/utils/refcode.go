package utils

import (
	"crypto/rand"
	"math/big"
)

const (
	ReferralCodePrefix = "EM"
	referralCodeLen    = 6
	base36             = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// NewReferralCode returns "EM" followed by 6 random upper-case base-36 chars.
func NewReferralCode() (string, error) {
	b := make([]byte, referralCodeLen)
	max := big.NewInt(int64(len(base36)))
	for i := range b {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b[i] = base36[n.Int64()]
	}
	return ReferralCodePrefix + string(b), nil
}

// ReferralLink is the shareable registration link for a user id.
func ReferralLink(userID string) string {
	return "https://empiremine.com/register?ref=" + userID
}
