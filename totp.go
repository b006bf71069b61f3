package goIdentity

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const totpSecretBytes = 20

// totpWindows are the step offsets accepted around the current time step.
var totpWindows = [...]int64{0, -1, 1}

// NewTOTPSecret returns a random secret and its unpadded base32 form for
// enrollment in an authenticator app.
func NewTOTPSecret() ([]byte, string, error) {
	raw := make([]byte, totpSecretBytes)
	if _, err := rand.Read(raw); err != nil {
		return nil, "", err
	}
	enc := base32.StdEncoding.WithPadding(base32.NoPadding)
	return raw, enc.EncodeToString(raw), nil
}

// TOTPProvisioningURI builds the otpauth:// URI authenticator apps scan.
func TOTPProvisioningURI(issuer, account, secretBase32 string, step TOTPStep) string {
	label := url.PathEscape(issuer + ":" + account)

	v := url.Values{}
	v.Set("secret", secretBase32)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(step.Period))
	v.Set("digits", strconv.Itoa(step.Digits))
	v.Set("algorithm", strings.ToUpper(step.Algorithm))

	return "otpauth://totp/" + label + "?" + v.Encode()
}

// TOTPCode returns the code the generator step produces for secret at t.
func TOTPCode(secret []byte, t time.Time, step TOTPStep) (string, error) {
	if step.Period <= 0 {
		return "", errors.New("totp period must be > 0")
	}
	return hotpCode(secret, t.Unix()/int64(step.Period), step.Digits, step.Algorithm)
}

// matchTOTP reports the window offset at which code matches, trying the
// current step first.
func matchTOTP(secret []byte, code string, now time.Time, step TOTPStep) (int64, bool, error) {
	if len(code) != step.Digits || !isNumeric(code) {
		return 0, false, nil
	}
	base := now.Unix() / int64(step.Period)
	for _, offset := range totpWindows {
		counter := base + offset
		if counter < 0 {
			continue
		}
		generated, err := hotpCode(secret, counter, step.Digits, step.Algorithm)
		if err != nil {
			return 0, false, err
		}
		if subtle.ConstantTimeCompare([]byte(generated), []byte(code)) == 1 {
			return offset, true, nil
		}
	}
	return 0, false, nil
}

// TOTPVerifier performs the second phase of a TOTP login. The credential is
// "linker:code" where linker is a token from the basic→totpLinker exchange.
type TOTPVerifier struct {
	c *core
}

func (v *TOTPVerifier) Verify(ctx context.Context, req AuthRequest) (*Principal, error) {
	c := v.c
	parts := strings.Split(req.Credential, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, ErrInvalidToken
	}

	linker, err := c.lookupOpaque(ctx, parts[0], KindTOTPLinker)
	if err != nil {
		return nil, err
	}
	var info totpLinkerInfo
	if err := linker.DecodeInfo(totpLinkerInfoType, &info); err != nil {
		return nil, err
	}
	if info.AccountID != linker.AccountID {
		return nil, ErrInvalidToken
	}

	account, err := c.accountByID(ctx, linker.AccountID)
	if err != nil {
		return nil, err
	}
	key, err := c.totpKeys.FindActiveKey(ctx, account.ID)
	if err != nil {
		return nil, backendError(err)
	}
	if key == nil || !key.Active || len(key.Secret) == 0 {
		return nil, ErrNoKey
	}

	step := c.cfg.TOTP.Default
	if s, ok := c.cfg.TOTP.Authenticators[key.Authenticator]; ok {
		step = s
	}

	if err := c.allowAttempt(ctx, attemptsTOTP, account.ID); err != nil {
		return nil, err
	}
	offset, ok, err := matchTOTP(key.Secret, strings.TrimSpace(parts[1]), c.now(), step)
	if err != nil {
		return nil, err
	}
	if !ok {
		c.inc(MetricTOTPFailure)
		c.attemptFailed(ctx, attemptsTOTP, account.ID)
		return nil, ErrTOTPMismatch
	}
	c.attemptSucceeded(ctx, attemptsTOTP, account.ID)
	if offset != 0 {
		c.inc(MetricTOTPSkewed)
		c.logger.Debug().Str("account_id", account.ID).Int64("offset", offset).Msg("totp code accepted with clock skew")
	}
	c.inc(MetricTOTPSuccess)

	principal := accountPrincipal(account)
	principal.Restrictions = linker.Restrictions
	principal.TrackingSession = linker.TrackingSession
	return principal, nil
}

func hotpCode(secret []byte, counter int64, digits int, algorithm string) (string, error) {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	hf, err := hmacFunc(algorithm)
	if err != nil {
		return "", err
	}
	mac := hmac.New(hf, secret)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, bin%mod), nil
}

func hmacFunc(algorithm string) (func() hash.Hash, error) {
	switch strings.ToUpper(algorithm) {
	case "", "SHA1":
		return sha1.New, nil
	case "SHA256":
		return sha256.New, nil
	case "SHA512":
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("unsupported totp algorithm %q", algorithm)
	}
}

func isNumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}
