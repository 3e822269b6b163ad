package sec

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/png"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP parameters shared by issuance and validation. They match the defaults
// authenticator apps assume when a provisioning URI omits them.
const (
	TOTPPeriod     = 30
	TOTPSkew       = 1
	TOTPDigits     = otp.DigitsSix
	TOTPAlgorithm  = otp.AlgorithmSHA1
	TOTPSecretSize = 20
	QRCodeSize     = 200
)

// Enrollment is a freshly issued TOTP shared secret and the artifacts a user
// needs to configure an authenticator app with it.
type Enrollment struct {
	// Secret is the base32 shared secret.
	Secret string
	// URI is the otpauth:// provisioning URI embedding Secret.
	URI string
	// QRCode is URI rendered as a PNG data URI.
	QRCode string
}

// IssueTOTP generates a new random shared secret for accountName under
// issuer.
func IssueTOTP(issuer, accountName string) (Enrollment, error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      TOTPPeriod,
		SecretSize:  TOTPSecretSize,
		Digits:      TOTPDigits,
		Algorithm:   TOTPAlgorithm,
	})
	if err != nil {
		return Enrollment{}, fmt.Errorf("failed to generate TOTP secret: %w", err)
	}
	qr, err := qrDataURI(key)
	if err != nil {
		return Enrollment{}, err
	}
	return Enrollment{
		Secret: key.Secret(),
		URI:    key.URL(),
		QRCode: qr,
	}, nil
}

// ValidateTOTP reports whether code is valid for secret at the given time,
// allowing one period of clock skew in either direction.
func ValidateTOTP(code, secret string, at time.Time) bool {
	ok, err := totp.ValidateCustom(code, secret, at.UTC(), totp.ValidateOpts{
		Period:    TOTPPeriod,
		Skew:      TOTPSkew,
		Digits:    TOTPDigits,
		Algorithm: TOTPAlgorithm,
	})
	return err == nil && ok
}

// GenerateTOTP returns the code for secret at the given time.
func GenerateTOTP(secret string, at time.Time) (string, error) {
	return totp.GenerateCodeCustom(secret, at.UTC(), totp.ValidateOpts{
		Period:    TOTPPeriod,
		Digits:    TOTPDigits,
		Algorithm: TOTPAlgorithm,
	})
}

func qrDataURI(key *otp.Key) (string, error) {
	img, err := key.Image(QRCodeSize, QRCodeSize)
	if err != nil {
		return "", fmt.Errorf("failed to render provisioning QR code: %w", err)
	}
	var buf bytes.Buffer
	if err = png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode provisioning QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
