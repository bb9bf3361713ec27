// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package far is the client for the FAR (Faculty Activity Reporting)
// HTTP API. Every request is signed with the INTF scheme: an HMAC-SHA1
// over the method, a UTC timestamp, and the request path, carried in
// the Authorization header alongside the caller's public key.
package far

import (
	"crypto/hmac"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"
	"time"

	"github.com/mesh-intelligence/faculty-sync/pkg/types"
)

// timestampLayout is the UTC wall-clock format the API expects in the
// TimeStamp header and inside the signed message.
const timestampLayout = "2006-01-02 15:04:05"

// Signer computes INTF request signatures from a set of credentials.
type Signer struct {
	publicKey  string
	privateKey string
	databaseID string
}

// NewSigner validates creds and returns a Signer. Incomplete
// credentials are reported as types.ErrAuthConfig.
func NewSigner(creds types.Credentials) (*Signer, error) {
	if err := creds.Validate(); err != nil {
		return nil, err
	}
	return &Signer{
		publicKey:  creds.PublicKey,
		privateKey: creds.PrivateKey,
		databaseID: creds.DatabaseID,
	}, nil
}

// Sign computes the Authorization and TimeStamp header values for one
// request. requestString is the path plus raw query, e.g.
// "/users?data=detailed&limit=100&offset=0". The signed message is
//
//	METHOD \n \n \n timestamp \n requestString
//
// with the two empty lines standing for the unused content-type and
// content-digest slots of the scheme.
func (s *Signer) Sign(method, requestString string, now time.Time) (authorization, timestamp string) {
	timestamp = now.UTC().Format(timestampLayout)
	message := method + "\n\n\n" + timestamp + "\n" + requestString

	mac := hmac.New(sha1.New, []byte(s.privateKey))
	mac.Write([]byte(message))
	signature := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return fmt.Sprintf("INTF %s:%s", s.publicKey, signature), timestamp
}

// Apply signs req in place, setting the Authorization, TimeStamp, and
// INTF-DatabaseID headers. requestString is the endpoint path plus raw
// query relative to the API root; the server verifies exactly that
// string, no matter where the root itself is mounted.
func (s *Signer) Apply(req *http.Request, requestString string, now time.Time) {
	authorization, timestamp := s.Sign(req.Method, requestString, now)
	req.Header.Set("Authorization", authorization)
	req.Header.Set("TimeStamp", timestamp)
	req.Header.Set("INTF-DatabaseID", s.databaseID)
}
