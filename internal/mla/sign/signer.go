// Package sign builds canonical, time-stamped, HMAC-signed request URLs for
// the membership API protocol. The API recomputes the same signature server
// side and rejects mismatches, so the sort-then-sign ordering here must not
// change.
package sign

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strconv"
	"time"
)

// Signer produces signed request URLs for a single API identity.
type Signer struct {
	key    string
	secret []byte
	now    func() time.Time
}

// New creates a Signer using the wall clock.
func New(key, secret string) *Signer {
	return NewWithClock(key, secret, time.Now)
}

// NewWithClock creates a Signer with an injected clock. The timestamp is the
// only non-deterministic input to Sign, so tests pin it here.
func NewWithClock(key, secret string, now func() time.Time) *Signer {
	return &Signer{
		key:    key,
		secret: []byte(secret),
		now:    now,
	}
}

// Sign adds the API key and current Unix timestamp to params, encodes them
// into a canonical query string (keys sorted lexicographically), and appends
// an HMAC-SHA256 signature over method + "&" + urlencode(requestURL).
func (s *Signer) Sign(method, baseURL string, params url.Values) string {
	canonical := url.Values{}
	for k, vs := range params {
		for _, v := range vs {
			canonical.Add(k, v)
		}
	}

	canonical.Set("key", s.key)
	canonical.Set("timestamp", strconv.FormatInt(s.now().Unix(), 10))

	// url.Values.Encode sorts by key, which is exactly the canonical form
	// the API expects.
	requestURL := baseURL + "?" + canonical.Encode()

	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(method + "&" + url.QueryEscape(requestURL)))
	signature := hex.EncodeToString(mac.Sum(nil))

	return requestURL + "&signature=" + signature
}
