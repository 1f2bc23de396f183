package session

// Session defines a public type used by goToken APIs.
//
// Session instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Session struct {
	SessionID string
	SubjectID string

	NetworkAddress string
	ClientContext  string

	Active            bool
	MinRefreshVersion uint32

	CreatedAt int64
	ExpiresAt int64

	// SchemaVersion records the wire version the record was decoded from.
	// Encode always writes CurrentSchemaVersion.
	SchemaVersion byte
}
