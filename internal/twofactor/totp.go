package twofactor

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base32"
	"time"

	"github.com/khanghh/krealm/params"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

var secretEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

var totpValidateOpts = totp.ValidateOpts{
	Period:    params.TOTPPeriod,
	Skew:      params.TOTPSkew,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// GenerateTOTPSecret returns a random shared secret in unpadded base32.
func GenerateTOTPSecret() (string, error) {
	raw := make([]byte, params.TOTPSecretSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return secretEncoding.EncodeToString(raw), nil
}

// OTPAuthURI builds the otpauth:// provisioning URI for authenticator apps.
func OTPAuthURI(issuer, accountName, secret string) (string, error) {
	raw, err := secretEncoding.DecodeString(secret)
	if err != nil {
		return "", ErrInvalidTOTPSecret
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      params.TOTPPeriod,
		Secret:      raw,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", err
	}
	return key.URL(), nil
}

// VerifyTOTP checks the code for t, accepting one time step of clock skew on each side.
func VerifyTOTP(secret, code string, t time.Time) bool {
	_, ok := matchTOTPStep(secret, code, t)
	return ok
}

// matchTOTPStep returns the time step within the skew range of t whose code equals code.
func matchTOTPStep(secret, code string, t time.Time) (int64, bool) {
	if len(code) != otp.DigitsSix.Length() {
		return 0, false
	}
	current := totpWindow(t)
	for step := current - params.TOTPSkew; step <= current+params.TOTPSkew; step++ {
		expected, err := totp.GenerateCodeCustom(secret, time.Unix(step*params.TOTPPeriod, 0).UTC(), totpValidateOpts)
		if err != nil {
			return 0, false
		}
		if subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1 {
			return step, true
		}
	}
	return 0, false
}

func totpWindow(t time.Time) int64 {
	return t.Unix() / params.TOTPPeriod
}
