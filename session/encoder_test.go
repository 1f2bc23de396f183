package session

import (
	"strings"
	"testing"
	"time"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	now := time.Now()
	sess := &Session{
		SubjectID:         "subject-1",
		NetworkAddress:    "203.0.113.9",
		ClientContext:     "cli/2.1 linux",
		Active:            true,
		MinRefreshVersion: 3,
		CreatedAt:         now.Unix(),
		ExpiresAt:         now.Add(time.Hour).Unix(),
	}

	blob, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if blob[0] != CurrentSchemaVersion {
		t.Fatalf("expected schema byte %d, got %d", CurrentSchemaVersion, blob[0])
	}

	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if decoded.SubjectID != sess.SubjectID {
		t.Fatalf("subjectID mismatch: %q vs %q", decoded.SubjectID, sess.SubjectID)
	}
	if decoded.NetworkAddress != sess.NetworkAddress {
		t.Fatalf("networkAddress mismatch: %q vs %q", decoded.NetworkAddress, sess.NetworkAddress)
	}
	if decoded.ClientContext != sess.ClientContext {
		t.Fatalf("clientContext mismatch: %q vs %q", decoded.ClientContext, sess.ClientContext)
	}
	if !decoded.Active {
		t.Fatal("expected active flag to survive the round trip")
	}
	if decoded.MinRefreshVersion != 3 {
		t.Fatalf("expected family floor 3, got %d", decoded.MinRefreshVersion)
	}
	if decoded.CreatedAt != sess.CreatedAt || decoded.ExpiresAt != sess.ExpiresAt {
		t.Fatalf("timestamp mismatch: %d/%d vs %d/%d",
			decoded.CreatedAt, decoded.ExpiresAt, sess.CreatedAt, sess.ExpiresAt)
	}
	if decoded.SchemaVersion != CurrentSchemaVersion {
		t.Fatalf("expected schema version %d, got %d", CurrentSchemaVersion, decoded.SchemaVersion)
	}
}

func TestEncodeInactiveSessionRoundTrip(t *testing.T) {
	sess := &Session{
		SubjectID: "subject-2",
		Active:    false,
		CreatedAt: 1700000000,
		ExpiresAt: 1700003600,
	}

	blob, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	decoded, err := Decode(blob)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if decoded.Active {
		t.Fatal("expected inactive flag to survive the round trip")
	}
	if decoded.NetworkAddress != "" || decoded.ClientContext != "" {
		t.Fatalf("expected empty optional fields, got %q/%q",
			decoded.NetworkAddress, decoded.ClientContext)
	}
}

func TestEncodeRejectsOversizedFields(t *testing.T) {
	long := strings.Repeat("x", 256)

	cases := []struct {
		name string
		sess *Session
	}{
		{"subject", &Session{SubjectID: long}},
		{"network", &Session{SubjectID: "s", NetworkAddress: long}},
		{"context", &Session{SubjectID: "s", ClientContext: long}},
	}

	for _, tc := range cases {
		if _, err := Encode(tc.sess); err == nil {
			t.Fatalf("expected %s length rejection", tc.name)
		}
	}
}

func TestDecodeLegacyV1DefaultsFamilyFloor(t *testing.T) {
	legacy := encodeLegacyV1Session(t, &Session{
		SubjectID:      "subject-legacy",
		NetworkAddress: "198.51.100.4",
		Active:         true,
		CreatedAt:      1700000000,
		ExpiresAt:      1700003600,
	})

	decoded, err := Decode(legacy)
	if err != nil {
		t.Fatalf("decode legacy blob failed: %v", err)
	}
	if decoded.SchemaVersion != 1 {
		t.Fatalf("expected schema version 1, got %d", decoded.SchemaVersion)
	}
	if decoded.MinRefreshVersion != 1 {
		t.Fatalf("expected legacy family floor 1, got %d", decoded.MinRefreshVersion)
	}
	if decoded.SubjectID != "subject-legacy" {
		t.Fatalf("subjectID mismatch: %q", decoded.SubjectID)
	}
	if !decoded.Active {
		t.Fatal("expected active flag from legacy blob")
	}
}

func TestDecodeTruncatedBlobFails(t *testing.T) {
	sess := &Session{
		SubjectID: "subject-3",
		Active:    true,
		CreatedAt: 1700000000,
		ExpiresAt: 1700003600,
	}
	blob, err := Encode(sess)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}

	for cut := 1; cut < len(blob); cut++ {
		if _, err := Decode(blob[:cut]); err == nil {
			t.Fatalf("expected decode failure at truncation %d", cut)
		}
	}
}
