// Package revision implements the gateway's emulation of CouchDB document
// revisions: the "N-hex" token format, the generation arithmetic used on
// create and update, and random document ID generation.
package revision

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Digest returns the lowercase hex MD5 of body, used as the hash
// component of a revision. Identical bodies always produce the same
// digest: a plain PUT/POST passes the request body bytes as received,
// while _bulk_docs items and update-function documents pass their
// json.Marshal encoding.
func Digest(body []byte) string {
	sum := md5.Sum(body)
	return hex.EncodeToString(sum[:])
}

// Parse splits a revision of the form "N-hex" into its generation and
// hash parts. An empty or malformed revision returns generation 0.
func Parse(rev string) (generation int, hash string, ok bool) {
	idx := strings.IndexByte(rev, '-')
	if idx <= 0 || idx == len(rev)-1 {
		return 0, "", false
	}
	n, err := strconv.Atoi(rev[:idx])
	if err != nil || n < 0 {
		return 0, "", false
	}
	return n, rev[idx+1:], true
}

// Next computes the revision that follows priorRev given the digest of
// the new body. An empty priorRev starts the document at generation 1.
func Next(priorRev string, digest string) string {
	generation := 0
	if priorRev != "" {
		if n, _, ok := Parse(priorRev); ok {
			generation = n
		}
	}
	return fmt.Sprintf("%d-%s", generation+1, digest)
}

// NewDocumentID returns a random 128-bit identifier formatted as 32
// lowercase hex characters, matching CouchDB's auto-generated _id shape.
func NewDocumentID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}
